package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"pauta/internal/assemble"
	"pauta/internal/domain"
	"pauta/internal/engine"
	"pauta/internal/render"
	"pauta/internal/repo"
)

// MaxUploadBytes bounds an uploaded import workbook.
const MaxUploadBytes = 20 << 20

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Logger   *zap.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"agenda_finished"`
	Message string         `json:"message" example:"a pauta está finalizada e não pode ser alterada"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"field\":\"process_number\"}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the pauta API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = logger
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the requested envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(accessLog(logger))
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(io.LimitReader(r.Body, MaxUploadBytes+1))
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine))
	hcfg := huma.DefaultConfig("Pauta API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerMe(group)
	registerSettings(group, cfg.Engine)
	registerAgendas(group, cfg.Engine)
	registerProcesses(group, cfg.Engine)
	registerImport(group, cfg.Engine)
	registerExport(group, cfg.Engine)
	registerDocumentConfig(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerAPIKeys(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)))
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var fe *engine.FieldError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": fe.Field})
	}
	var pe *assemble.PreconditionError
	if errors.As(err, &pe) {
		var details map[string]any
		if len(pe.Fields) > 0 {
			details = map[string]any{"fields": pe.Fields}
		}
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), details)
	}
	var xe *engine.ExportError
	if errors.As(err, &xe) {
		return newAPIError(http.StatusInternalServerError, "export_failed", xe.Error(), nil)
	}
	msg := err.Error()
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case errors.Is(err, engine.ErrAgendaFinished):
		return newAPIError(http.StatusConflict, "agenda_finished", msg, nil)
	case errors.Is(err, repo.ErrConflict):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case errors.Is(err, engine.ErrAgendaNotFinished):
		return newAPIError(http.StatusUnprocessableEntity, "agenda_not_finished", msg, nil)
	case errors.Is(err, engine.ErrNoImportRows):
		return newAPIError(http.StatusUnprocessableEntity, "no_import_rows", msg, nil)
	case errors.Is(err, engine.ErrInvalidInput):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join("/", basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Pauta API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerMe(api huma.API) {
	type whoAmI struct {
		ActorID string `json:"actor_id"`
		Email   string `json:"email,omitempty"`
		Method  string `json:"method" enum:"token,api_key,actor_header"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Identity the request acts as",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body whoAmI `json:"body"`
	}, error) {
		id, ok := identityFromContext(ctx)
		if !ok {
			return nil, errUnauthorized()
		}
		return &struct {
			Body whoAmI `json:"body"`
		}{Body: whoAmI{ActorID: id.ActorID, Email: id.Email, Method: string(id.Method)}}, nil
	})
}

func registerSettings(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-settings",
		Method:      http.MethodGet,
		Path:        "/settings",
		Summary:     "Selectable session types, prosecutors and vote types",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.Settings `json:"body"`
	}, error) {
		s := e.Settings()
		s.SessionTypes = nonNilSlice(s.SessionTypes)
		s.Prosecutors = nonNilSlice(s.Prosecutors)
		return &struct {
			Body engine.Settings `json:"body"`
		}{Body: s}, nil
	})
}

type agendaPath struct {
	AgendaID string `path:"agenda_id"`
}

type agendaOutput struct {
	Body AgendaResponse `json:"body"`
}

func registerAgendas(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-agenda",
		Method:        http.MethodPost,
		Path:          "/agendas",
		Summary:       "Create agenda",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateAgendaRequest `json:"body"`
	}) (*agendaOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.CreateAgenda(ctx, engine.AgendaInput{
			Type:   input.Body.Type,
			Number: input.Body.Number,
			Date:   input.Body.Date,
		}, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &agendaOutput{Body: agendaResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-agendas",
		Method:      http.MethodGet,
		Path:        "/agendas",
		Summary:     "List agendas, most recent first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Finished string `query:"finished" enum:"true,false"`
		Limit    int    `query:"limit" default:"50"`
	}) (*struct {
		Body paginatedAgendas `json:"body"`
	}, error) {
		f := repo.AgendaFilters{Limit: normalizeLimit(input.Limit)}
		if input.Finished != "" {
			v := input.Finished == "true"
			f.Finished = &v
		}
		items, err := e.ListAgendas(ctx, f)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedAgendas{Items: []AgendaResponse{}}
		for _, a := range items {
			resp.Items = append(resp.Items, agendaResponse(a))
		}
		return &struct {
			Body paginatedAgendas `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-agenda",
		Method:      http.MethodGet,
		Path:        "/agendas/{agenda_id}",
		Summary:     "Get agenda",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *agendaPath) (*agendaOutput, error) {
		a, err := e.GetAgenda(ctx, input.AgendaID)
		if err != nil {
			return nil, handleError(err)
		}
		return &agendaOutput{Body: agendaResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-agenda",
		Method:      http.MethodPatch,
		Path:        "/agendas/{agenda_id}",
		Summary:     "Update agenda",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		AgendaID string              `path:"agenda_id"`
		Body     UpdateAgendaRequest `json:"body"`
	}) (*agendaOutput, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.UpdateAgenda(ctx, input.AgendaID, engine.AgendaPatch{
			Type:   input.Body.Type,
			Number: input.Body.Number,
			Date:   input.Body.Date,
		}, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &agendaOutput{Body: agendaResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-agenda",
		Method:        http.MethodDelete,
		Path:          "/agendas/{agenda_id}",
		Summary:       "Delete agenda and its processes",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *agendaPath) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteAgenda(ctx, input.AgendaID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	for _, finished := range []bool{true, false} {
		finished := finished
		op, summary := "reopen-agenda", "Reopen a finished agenda"
		if finished {
			op, summary = "finish-agenda", "Finish agenda, freezing it for export"
		}
		huma.Register(api, huma.Operation{
			OperationID: op,
			Method:      http.MethodPost,
			Path:        "/agendas/{agenda_id}/" + strings.TrimSuffix(op, "-agenda"),
			Summary:     summary,
			Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
		}, func(ctx context.Context, input *agendaPath) (*agendaOutput, error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			a, err := e.SetAgendaFinished(ctx, input.AgendaID, finished, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return &agendaOutput{Body: agendaResponse(a)}, nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID: "agenda-summary",
		Method:      http.MethodGet,
		Path:        "/agendas/{agenda_id}/summary",
		Summary:     "Outline grouped by counselor",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *agendaPath) (*struct {
		Body SummaryResponse `json:"body"`
	}, error) {
		s, err := e.AgendaSummary(ctx, input.AgendaID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SummaryResponse `json:"body"`
		}{Body: summaryResponse(input.AgendaID, s)}, nil
	})
}

type processOutput struct {
	Body ProcessResponse `json:"body"`
}

func registerProcesses(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-processes",
		Method:      http.MethodGet,
		Path:        "/agendas/{agenda_id}/processes",
		Summary:     "List processes of an agenda by position",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *agendaPath) (*struct {
		Body []ProcessResponse `json:"body"`
	}, error) {
		items, err := e.ListProcesses(ctx, input.AgendaID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProcessResponse `json:"body"`
		}{Body: mapProcesses(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-process",
		Method:        http.MethodPost,
		Path:          "/agendas/{agenda_id}/processes",
		Summary:       "Add a process to an open agenda",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		AgendaID string         `path:"agenda_id"`
		Body     ProcessRequest `json:"body"`
	}) (*processOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreateProcess(ctx, input.AgendaID, input.Body.input(), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &processOutput{Body: processResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-process",
		Method:      http.MethodGet,
		Path:        "/processes/{process_id}",
		Summary:     "Get process",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProcessID string `path:"process_id"`
	}) (*processOutput, error) {
		p, err := e.GetProcess(ctx, input.ProcessID)
		if err != nil {
			return nil, handleError(err)
		}
		return &processOutput{Body: processResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-process",
		Method:      http.MethodPatch,
		Path:        "/processes/{process_id}",
		Summary:     "Update process",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProcessID string         `path:"process_id"`
		Body      ProcessRequest `json:"body"`
	}) (*processOutput, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.UpdateProcess(ctx, input.ProcessID, input.Body.input(), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &processOutput{Body: processResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-process",
		Method:        http.MethodDelete,
		Path:          "/processes/{process_id}",
		Summary:       "Delete process and renumber the following ones",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProcessID string `path:"process_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteProcess(ctx, input.ProcessID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

// uploadedWorkbook returns the raw upload or the "file" part of a multipart
// form.
func uploadedWorkbook(ctx context.Context, raw []byte) ([]byte, error) {
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return raw, nil
	}
	mt, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if err != nil || mt != "multipart/form-data" {
		return raw, nil
	}
	mr := multipart.NewReader(bytes.NewReader(raw), params["boundary"])
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, errors.New("multipart form has no file part")
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return io.ReadAll(part)
		}
	}
}

func registerImport(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:  "list-import-sheets",
		Method:       http.MethodPost,
		Path:         "/imports/sheets",
		Summary:      "List the worksheets of an uploaded workbook",
		MaxBodyBytes: MaxUploadBytes,
		Errors:       []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		RawBody []byte
	}) (*struct {
		Body SheetsResponse `json:"body"`
	}, error) {
		data, err := uploadedWorkbook(ctx, input.RawBody)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		if len(data) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		names, err := e.ImportSheets(bytes.NewReader(data))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SheetsResponse `json:"body"`
		}{Body: SheetsResponse{Sheets: nonNilSlice(names)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "import-processes",
		Method:        http.MethodPost,
		Path:          "/agendas/{agenda_id}/processes/import",
		Summary:       "Append processes from an xlsx workbook",
		DefaultStatus: http.StatusCreated,
		MaxBodyBytes:  MaxUploadBytes,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		AgendaID string `path:"agenda_id"`
		Sheet    string `query:"sheet"`
		RawBody  []byte
	}) (*struct {
		Body ImportResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		data, err := uploadedWorkbook(ctx, input.RawBody)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		if len(data) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		created, err := e.ImportProcesses(ctx, input.AgendaID, bytes.NewReader(data), input.Sheet, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ImportResponse `json:"body"`
		}{Body: ImportResponse{Created: mapProcesses(created)}}, nil
	})
}

type exportOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

func registerExport(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "export-agenda",
		Method:      http.MethodGet,
		Path:        "/agendas/{agenda_id}/export",
		Summary:     "Download a finished agenda as docx, xlsx or printable html",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		AgendaID string `path:"agenda_id"`
		Format   string `query:"format" default:"docx" doc:"docx, xlsx or html (aliases: word, excel, pdf, print)"`
	}) (*exportOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		format, err := render.ParseFormat(input.Format)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"format": input.Format})
		}
		art, err := e.Export(ctx, input.AgendaID, format, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &exportOutput{
			ContentType:        art.ContentType,
			ContentDisposition: mime.FormatMediaType("attachment", map[string]string{"filename": art.Filename}),
			Body:               art.Data,
		}, nil
	})
}

func registerDocumentConfig(api huma.API, e engine.Engine) {
	type docConfigOutput struct {
		Body domain.DocumentConfig `json:"body"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "get-document-config",
		Method:      http.MethodGet,
		Path:        "/document-config",
		Summary:     "Letterhead used by exports",
	}, func(ctx context.Context, _ *struct{}) (*docConfigOutput, error) {
		c, err := e.DocumentConfig(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &docConfigOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "put-document-config",
		Method:      http.MethodPut,
		Path:        "/document-config",
		Summary:     "Replace the letterhead used by exports",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body domain.DocumentConfig `json:"body"`
	}) (*docConfigOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.SetDocumentConfig(ctx, input.Body, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &docConfigOutput{Body: c}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"agenda,process,document_config,api_key"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.Events(ctx, repo.EventFilters{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Before:     cursorID,
			Limit:      limit + 1,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/api-keys",
		Summary:       "Create an API key for the current actor",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		key, secret, err := e.CreateAPIKey(ctx, actorID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: apiKeyResponse(key, secret)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/api-keys",
		Summary:     "List the current actor's API keys",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []APIKeyResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		keys, err := e.ListAPIKeys(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		out := []APIKeyResponse{}
		for _, k := range keys {
			out = append(out, apiKeyResponse(k, ""))
		}
		return &struct {
			Body []APIKeyResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-api-key",
		Method:        http.MethodDelete,
		Path:          "/api-keys/{key_id}",
		Summary:       "Revoke one of the current actor's API keys",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		KeyID string `path:"key_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteAPIKey(ctx, input.KeyID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
