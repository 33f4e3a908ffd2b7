package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/matzehuels/cardpress/pkg/config"
	"github.com/matzehuels/cardpress/pkg/errors"
	"github.com/matzehuels/cardpress/pkg/observability"
	"github.com/matzehuels/cardpress/pkg/pipeline"
	"github.com/matzehuels/cardpress/pkg/pixel"
)

const (
	maxRequestBody  = 1 << 20
	shutdownTimeout = 10 * time.Second
)

type serveOpts struct {
	addr    string
	dpi     int
	mapping string
	noCache bool
}

// serveCommand runs a stateless render service for one template.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve <config>",
		Short: "Serve personalized cards over HTTP",
		Long: `Serve rasterizes the template once and answers:

  POST /render            guest JSON in, PDF out
  GET  /pages/{n}.png     page n with zone outlines
  GET  /zones             the loaded config
  GET  /healthz           liveness`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				opts.addr = c.Settings.Serve.Addr
			}
			if !cmd.Flags().Changed("dpi") {
				opts.dpi = c.Settings.DPI
			}
			return c.runServe(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "listen address")
	cmd.Flags().IntVar(&opts.dpi, "dpi", pipeline.DefaultDPI, "rasterization resolution")
	cmd.Flags().StringVarP(&opts.mapping, "mapping", "m", "", "default field to zone mapping JSON")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "rasterize the template even if it is cached")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, configPath string, so serveOpts) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	mapping := pipeline.IdentityMapping(cfg)
	if so.mapping != "" {
		if mapping, err = pipeline.LoadMapping(so.mapping); err != nil {
			return err
		}
	}
	opts, closeCache, err := c.processorOptions(ctx, so.dpi, so.noCache)
	if err != nil {
		return err
	}
	defer closeCache()

	proc, err := pipeline.NewProcessor(ctx, cfg, opts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              so.addr,
		Handler:           newServer(proc, mapping, c.Logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	printSuccess("Serving %s on %s", cfg.TemplateID, so.addr)

	select {
	case err := <-errc:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}
	shutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	c.Logger.Info("shutting down")
	return srv.Shutdown(shutCtx)
}

// =============================================================================
// Handlers
// =============================================================================

type server struct {
	proc    *pipeline.Processor
	mapping pipeline.Mapping
	logger  *log.Logger
}

// renderRequest is the body of POST /render.
type renderRequest struct {
	Guest   pipeline.Guest   `json:"guest"`
	Mapping pipeline.Mapping `json:"mapping,omitempty"`
}

func newServer(proc *pipeline.Processor, m pipeline.Mapping, logger *log.Logger) http.Handler {
	s := &server{proc: proc, mapping: m, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Get("/zones", s.zones)
	r.Get("/pages/{n}.png", s.page)
	r.Post("/render", s.render)
	return r
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		l := s.logger.With("request", middleware.GetReqID(r.Context()))
		ctx := withLogger(r.Context(), l)

		observability.HTTP().OnRequest(ctx, r.Method, r.URL.Path)
		next.ServeHTTP(ww, r.WithContext(ctx))
		dur := time.Since(start)
		observability.HTTP().OnResponse(ctx, r.Method, r.URL.Path, ww.Status(), dur)
		l.Debug("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "duration", dur)
	})
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	t := s.proc.Template()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"template": t.Config.TemplateID,
		"pages":    len(t.Pages),
		"dpi":      t.DPI,
	})
}

func (s *server) zones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.proc.Template().Config)
}

func (s *server) page(w http.ResponseWriter, r *http.Request) {
	t := s.proc.Template()
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 1 || n > len(t.Pages) {
		s.fail(w, r, errors.New(errors.ErrCodeInvalidInput, "page must be between 1 and %d", len(t.Pages)))
		return
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, pixel.DrawZones(t.Pages[n-1], t.Config.Zones), imaging.PNG); err != nil {
		s.fail(w, r, errors.Wrap(errors.ErrCodeEncoding, err, "encode page %d", n))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

func (s *server) render(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		if errors.GetCode(err) == "" {
			err = errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request")
		}
		s.fail(w, r, err)
		return
	}
	m := req.Mapping
	if m == nil {
		m = s.mapping
	}

	name := pipeline.ResolveNames(s.proc.Template().Config, []pipeline.Guest{req.Guest}, m)[0]
	out, err := s.proc.ProcessGuest(r.Context(), 0, name, req.Guest, m)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if out.Renderer != "" {
		w.Header().Set("X-Cardpress-Renderer", out.Renderer)
	}
	_, _ = w.Write(out.Data)
}

// fail writes err as JSON with a status derived from its code.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(errors.GetCode(err))
	if status >= 500 {
		loggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, map[string]string{
		"code":  string(errors.GetCode(err)),
		"error": errors.UserMessage(err),
	})
}

func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidPath:
		return http.StatusBadRequest
	case errors.ErrCodeZoneBleed:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeRendererUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
