// Package record reads catalog tables into field mappings.
//
// A catalog is either a CSV file with a header row or a JSON array of flat
// objects. Both share the same column names (Titolo, Tipologia, Anno, ...);
// the JSON form may additionally carry a nuovi_tag array of extra tags.
//
// # Sources
//
// A [Source] yields records lazily through an [iter.Seq2]. Sources are
// restartable: every call to Records re-opens the underlying input through
// its [Opener], so the same source can be iterated any number of times.
//
//	src := record.NewCSV(record.FileOpener("collezione.csv"))
//	for rec, err := range src.Records() {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(rec.Title())
//	}
//
// Use [DetectFormat] and [New] to pick the source from a file extension.
//
// # Missing Fields
//
// Absent optional fields read as the empty string. CSV input must carry the
// required columns in its header ([RequiredColumns]); JSON input never fails
// on missing keys, records without a title are left to the caller to skip.
package record
