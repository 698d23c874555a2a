package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/isia-imav/taggraph/pkg/buildinfo"
	"github.com/isia-imav/taggraph/pkg/config"
	apperr "github.com/isia-imav/taggraph/pkg/errors"
	"github.com/isia-imav/taggraph/pkg/graph"
	"github.com/isia-imav/taggraph/pkg/observability"
	"github.com/isia-imav/taggraph/pkg/pipeline"
	"github.com/isia-imav/taggraph/pkg/record"
	"github.com/isia-imav/taggraph/pkg/render/nodelink"
)

const (
	maxUploadBytes  = 32 << 20
	shutdownTimeout = 5 * time.Second
)

// serveCommand exposes the graph of the configured catalog over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		flags buildFlags
		addr  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tag graph of the configured catalog over HTTP",
		Long: `Serve builds the graph of the configured catalog on each request, using
the build cache, and serves it as JSON, DOT or SVG.

Endpoints:
  GET  /healthz      liveness probe
  GET  /graph        graph JSON (?normalize=, ?skip_duplicates= override)
  GET  /graph.dot    Graphviz source
  GET  /graph.svg    rendered diagram
  GET  /stats        item, tag and link counts with top tags
  POST /graph        graph of the uploaded catalog (?format=csv|json)
  GET  /metrics      build, cache and request counters`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd, config.Default(), &flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Serve.Addr = addr
			}

			opts, err := pipelineOptions(cfg)
			if err != nil {
				return err
			}
			runner, err := c.newRunner(cfg, flags.noCache)
			if err != nil {
				return err
			}
			defer runner.Cache.Close()

			counters := observability.NewCounters()
			observability.SetPipelineHooks(counters)
			observability.SetCacheHooks(counters)
			observability.SetServerHooks(counters)
			defer observability.Reset()

			srv := &http.Server{
				Addr:              cfg.Serve.Addr,
				Handler:           newHandler(runner, opts, c.Logger, counters),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return c.listenAndServe(cmd.Context(), srv)
		},
	}

	flags.register(cmd, true)
	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "listen address")
	return cmd
}

// listenAndServe runs srv until ctx is cancelled, then shuts it down.
func (c *CLI) listenAndServe(ctx context.Context, srv *http.Server) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	c.Logger.Info("serving tag graph", "addr", "http://"+ln.Addr().String())

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	c.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}

// graphServer answers graph requests from a shared runner.
type graphServer struct {
	runner *pipeline.Runner
	opts   pipeline.Options
}

// newHandler builds the HTTP router. /metrics is mounted when counters is
// non-nil.
func newHandler(runner *pipeline.Runner, opts pipeline.Options, logger *log.Logger, counters *observability.Counters) http.Handler {
	s := &graphServer{runner: runner, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealthz)
	r.Get("/graph", s.handleGraph)
	r.Get("/graph.dot", s.handleDOT)
	r.Get("/graph.svg", s.handleSVG)
	r.Get("/stats", s.handleStats)
	r.Post("/graph", s.handleUpload)
	if counters != nil {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, counters.Snapshot())
		})
	}
	return r
}

// accessLog attaches a request-scoped logger and logs each response.
func accessLog(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLogger := logger.With("request_id", middleware.GetReqID(r.Context()))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(withLogger(r.Context(), reqLogger)))

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			observability.Server().OnRequest(r.Context(), r.Method, route, ww.Status(), time.Since(start))
			reqLogger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start))
		})
	}
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Taggraph-Version", buildinfo.Version)
	_, _ = io.WriteString(w, "ok\n")
}

// requestOptions applies per-request overrides to the configured options.
func (s *graphServer) requestOptions(r *http.Request) (pipeline.Options, error) {
	opts := s.opts
	q := r.URL.Query()
	for _, o := range []struct {
		key string
		dst *bool
	}{
		{"normalize", &opts.NormalizeTags},
		{"skip_duplicates", &opts.SkipDuplicates},
		{"ascii", &opts.EscapeASCII},
	} {
		v := q.Get(o.key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, apperr.New(apperr.ErrCodeInvalidInput, "%s: %q is not a boolean", o.key, v)
		}
		*o.dst = b
	}
	return opts, nil
}

func (s *graphServer) build(r *http.Request) (*graph.Graph, pipeline.Options, error) {
	opts, err := s.requestOptions(r)
	if err != nil {
		return nil, opts, err
	}
	g, hit, err := s.runner.Build(r.Context(), opts)
	if err != nil {
		return nil, opts, err
	}
	loggerFromContext(r.Context()).Debug("built graph", "cached", hit)
	return g, opts, nil
}

func (s *graphServer) handleGraph(w http.ResponseWriter, r *http.Request) {
	g, opts, err := s.build(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeGraph(w, g, opts)
}

func (s *graphServer) handleDOT(w http.ResponseWriter, r *http.Request) {
	g, _, err := s.build(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	_, _ = io.WriteString(w, nodelink.ToDOT(g, nodelink.Options{}))
}

func (s *graphServer) handleSVG(w http.ResponseWriter, r *http.Request) {
	g, _, err := s.build(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	svg, err := nodelink.RenderSVG(r.Context(), nodelink.ToDOT(g, nodelink.Options{}))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(svg)
}

func (s *graphServer) handleStats(w http.ResponseWriter, r *http.Request) {
	g, _, err := s.build(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	top := 10
	if v := r.URL.Query().Get("top"); v != "" {
		if top, err = strconv.Atoi(v); err != nil {
			writeError(w, r, apperr.New(apperr.ErrCodeInvalidInput, "top: %q is not a number", v))
			return
		}
	}
	writeJSON(w, http.StatusOK, summarize(g, top))
}

// handleUpload builds the graph of a catalog sent in the request body.
func (s *graphServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	opts, err := s.requestOptions(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts.Format = r.URL.Query().Get("format")
	if opts.Format == "" {
		opts.Format = record.FormatCSV
	}
	if opts.Format != record.FormatCSV && opts.Format != record.FormatJSON {
		writeError(w, r, apperr.New(apperr.ErrCodeInvalidFormat, "unsupported format %q (use csv or json)", opts.Format))
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.ErrCodeInvalidInput, err, "read request body"))
		return
	}
	g, _, err := s.runner.BuildBytes(r.Context(), data, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeGraph(w, g, opts)
}

func writeGraph(w http.ResponseWriter, g *graph.Graph, opts pipeline.Options) {
	data, err := graph.Marshal(g, opts.WriteOptions())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		loggerFromContext(r.Context()).Error("request failed", "error", err)
	}
	writeJSON(w, status, errorBody{Error: apperr.UserMessage(err), Code: string(apperr.GetCode(err))})
}

// statusFor maps an error code to an HTTP status.
func statusFor(err error) int {
	switch apperr.GetCode(err) {
	case apperr.ErrCodeFileNotFound, apperr.ErrCodeNotFound:
		return http.StatusNotFound
	case apperr.ErrCodeInvalidInput, apperr.ErrCodeInvalidFormat, apperr.ErrCodeInvalidPath:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
