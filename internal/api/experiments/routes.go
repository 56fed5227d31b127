// Package experiments provides the /init and /publish endpoints.
package experiments

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heda-org/heda-gitops/internal/api/common"
	"github.com/heda-org/heda-gitops/internal/logger"
	"github.com/heda-org/heda-gitops/internal/proposal"
	"github.com/heda-org/heda-gitops/internal/provision"
	"github.com/heda-org/heda-gitops/internal/publish"
)

const (
	// FieldExperimentName is the form and JSON field naming the experiment
	FieldExperimentName = "experiment_name"
	// FieldFiles is the multipart field carrying uploaded files
	FieldFiles = "files"

	// DefaultMaxUploadBytes caps a publish request body
	DefaultMaxUploadBytes int64 = 32 << 20

	// InitMessage is returned after a repository is provisioned
	InitMessage = "GitOps repository initialized.\nSubmit experiments via pull requests."
	// PublishMessage is returned after a pull request is opened
	PublishMessage = "Pull request created"

	maxInitBodyBytes = 64 << 10
)

// InitRequest is the body of POST /init
type InitRequest struct {
	ExperimentName string `json:"experiment_name"`
}

// InitResponse is the body returned by POST /init
type InitResponse struct {
	RepoURL string `json:"repo_url"`
	Message string `json:"message"`
}

// PublishResponse is the body returned by POST /publish
type PublishResponse struct {
	ExperimentID string `json:"experiment_id"`
	PRURL        string `json:"pr_url"`
	Message      string `json:"message"`
}

// Routes handles HTTP requests for experiment provisioning and publication
type Routes struct {
	provision      provision.Service
	publish        publish.Service
	maxUploadBytes int64
	gate           func(http.Handler) http.Handler
}

// RouterOption configures the experiments router
type RouterOption func(*Routes)

// WithMaxUploadBytes caps the size of a publish request body
func WithMaxUploadBytes(n int64) RouterOption {
	return func(r *Routes) {
		if n > 0 {
			r.maxUploadBytes = n
		}
	}
}

// WithMembershipGate rejects callers who are not members of the organization
func WithMembershipGate(gate func(http.Handler) http.Handler) RouterOption {
	return func(r *Routes) {
		r.gate = gate
	}
}

// NewRoutes creates a new Routes instance
func NewRoutes(prov provision.Service, pub publish.Service, opts ...RouterOption) *Routes {
	routes := &Routes{
		provision:      prov,
		publish:        pub,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(routes)
	}
	return routes
}

// Router creates the router for POST /init and POST /publish
func Router(prov provision.Service, pub publish.Service, opts ...RouterOption) http.Handler {
	r := chi.NewRouter()
	Register(r, prov, pub, opts...)
	return r
}

// Register adds POST /init and POST /publish to r
func Register(r chi.Router, prov provision.Service, pub publish.Service, opts ...RouterOption) {
	routes := NewRoutes(prov, pub, opts...)

	r.Group(func(r chi.Router) {
		if routes.gate != nil {
			r.Use(routes.gate)
		}
		r.Post("/init", routes.initExperiment)
		r.Post("/publish", routes.publishExperiment)
	})
}

// initExperiment handles POST /init
func (routes *Routes) initExperiment(w http.ResponseWriter, r *http.Request) {
	id, ok := common.RequireIdentity(w, r)
	if !ok {
		return
	}

	var req InitRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxInitBodyBytes)).Decode(&req); err != nil {
		common.WriteErrorResponse(w, "Invalid request body: expected {\"experiment_name\": \"...\"}", http.StatusBadRequest)
		return
	}
	if req.ExperimentName == "" {
		common.WriteErrorResponse(w, "missing field: "+FieldExperimentName, http.StatusBadRequest)
		return
	}

	result, err := routes.provision.Provision(r.Context(), id.Username, req.ExperimentName)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}

	common.WriteJSONResponse(w, InitResponse{RepoURL: result.RepoURL, Message: InitMessage}, http.StatusOK)
}

// publishExperiment handles POST /publish
func (routes *Routes) publishExperiment(w http.ResponseWriter, r *http.Request) {
	id, ok := common.RequireIdentity(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, routes.maxUploadBytes)
	experiment, files, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.WriteErrorResponse(w,
				fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := routes.publish.Publish(r.Context(), publish.Request{
		Experiment: experiment,
		Username:   id.Username,
		UserID:     id.Subject,
		Files:      files,
	})
	if err != nil {
		common.WriteError(w, r, err)
		return
	}

	common.WriteJSONResponse(w, PublishResponse{
		ExperimentID: result.ExperimentID,
		PRURL:        result.PRURL,
		Message:      PublishMessage,
	}, http.StatusOK)
}

// readUpload streams the multipart body, keeping each file part's raw
// filename as its relative path. mime/multipart's FileName strips
// directories, so the Content-Disposition header is parsed directly.
func readUpload(r *http.Request) (string, []proposal.File, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return "", nil, fmt.Errorf("expected a multipart/form-data body: %w", err)
	}

	var experiment string
	var files []proposal.File
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, fmt.Errorf("malformed multipart body: %w", err)
		}

		switch part.FormName() {
		case FieldExperimentName:
			value, err := io.ReadAll(part)
			if err != nil {
				return "", nil, err
			}
			experiment = string(value)
		case FieldFiles:
			file, err := readFilePart(part)
			if err != nil {
				return "", nil, err
			}
			files = append(files, file)
		default:
			logger.Debugf("Ignoring multipart field %q", part.FormName())
		}
		_ = part.Close()
	}

	if experiment == "" {
		return "", nil, fmt.Errorf("missing field: %s", FieldExperimentName)
	}
	if len(files) == 0 {
		return "", nil, fmt.Errorf("missing field: %s", FieldFiles)
	}
	return experiment, files, nil
}

func readFilePart(part *multipart.Part) (proposal.File, error) {
	name := rawFilename(part)
	if name == "" {
		return proposal.File{}, errors.New("uploaded file is missing a filename")
	}
	content, err := io.ReadAll(part)
	if err != nil {
		return proposal.File{}, err
	}
	return proposal.File{Path: name, Content: content}, nil
}

func rawFilename(part *multipart.Part) string {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return ""
	}
	return params["filename"]
}
