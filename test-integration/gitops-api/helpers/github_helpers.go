package helpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/onsi/gomega"

	"github.com/heda-org/heda-gitops/internal/github"
)

// FakePullRequest is a pull request opened against the fake
type FakePullRequest struct {
	github.NewPullRequest
	Number int
	SHA    string
	Merged bool
}

// FakeGitHub serves the slice of the GitHub REST API the backend calls.
// Created repositories are bare repositories on local disk, cloned and
// pushed to over file:// URLs.
type FakeGitHub struct {
	server     *httptest.Server
	org        string
	remotesDir string

	mu          sync.Mutex
	repos       map[string]github.CreateRepoRequest
	protections map[string]github.BranchProtection
	pulls       map[string][]*FakePullRequest
	users       map[string]int64
	members     map[string]bool
	invitations []int64
}

// NewFakeGitHub starts a fake for org keeping its repositories under remotesDir
func NewFakeGitHub(org, remotesDir string) *FakeGitHub {
	err := os.MkdirAll(remotesDir, 0750)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	f := &FakeGitHub{
		org:         org,
		remotesDir:  remotesDir,
		repos:       make(map[string]github.CreateRepoRequest),
		protections: make(map[string]github.BranchProtection),
		pulls:       make(map[string][]*FakePullRequest),
		users:       make(map[string]int64),
		members:     make(map[string]bool),
	}

	r := chi.NewRouter()
	r.Post("/orgs/{org}/repos", f.createRepo)
	r.Put("/repos/{owner}/{repo}/branches/{branch}/protection", f.protectBranch)
	r.Post("/repos/{owner}/{repo}/pulls", f.createPullRequest)
	r.Get("/repos/{owner}/{repo}/pulls/{number}", f.getPullRequest)
	r.Put("/repos/{owner}/{repo}/pulls/{number}/merge", f.mergePullRequest)
	r.Get("/repos/{owner}/{repo}/commits/{sha}/pulls", f.pullRequestsForCommit)
	r.Get("/users/{login}", f.getUser)
	r.Post("/orgs/{org}/invitations", f.invite)
	r.Get("/orgs/{org}/members/{login}", f.isMember)
	r.Post("/app/installations/{id}/access_tokens", f.installationToken)

	f.server = httptest.NewServer(r)
	return f
}

// URL returns the API base URL
func (f *FakeGitHub) URL() string {
	return f.server.URL
}

// Close stops the fake
func (f *FakeGitHub) Close() {
	f.server.Close()
}

// RemoteDir returns the bare repository backing repo
func (f *FakeGitHub) RemoteDir(repo string) string {
	return filepath.Join(f.remotesDir, repo+".git")
}

// RemoteURL returns the clone URL of repo, usable as a publish remote
func (f *FakeGitHub) RemoteURL(repo string) string {
	return "file://" + f.RemoteDir(repo)
}

// AddUser registers a GitHub account
func (f *FakeGitHub) AddUser(login string, id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[login] = id
}

// AddMember makes login an organization member, as if the invitation was accepted
func (f *FakeGitHub) AddMember(login string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[login] = true
}

// Invitations returns the invited user ids in order
func (f *FakeGitHub) Invitations() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.invitations...)
}

// Protection returns the protection applied to branch of repo
func (f *FakeGitHub) Protection(repo, branch string) (github.BranchProtection, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.protections[repo+"/"+branch]
	return p, ok
}

// PullRequests returns the pull requests opened on repo
func (f *FakeGitHub) PullRequests(repo string) []FakePullRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakePullRequest, 0, len(f.pulls[repo]))
	for _, pr := range f.pulls[repo] {
		out = append(out, *pr)
	}
	return out
}

func (f *FakeGitHub) createRepo(w http.ResponseWriter, r *http.Request) {
	var req github.CreateRepoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.repos[req.Name]; ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "name already exists on this account"})
		return
	}

	repo, err := gogit.PlainInit(f.RemoteDir(req.Name), true)
	if err == nil {
		err = repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.Main))
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	f.repos[req.Name] = req

	writeJSON(w, http.StatusCreated, github.Repository{
		Name:          req.Name,
		FullName:      f.org + "/" + req.Name,
		HTMLURL:       "https://github.test/" + f.org + "/" + req.Name,
		CloneURL:      f.RemoteURL(req.Name),
		DefaultBranch: "main",
	})
}

func (f *FakeGitHub) protectBranch(w http.ResponseWriter, r *http.Request) {
	var p github.BranchProtection
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	repo, branch := chi.URLParam(r, "repo"), chi.URLParam(r, "branch")

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.repos[repo]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	f.protections[repo+"/"+branch] = p
	writeJSON(w, http.StatusOK, p)
}

func (f *FakeGitHub) createPullRequest(w http.ResponseWriter, r *http.Request) {
	var req github.NewPullRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	repo := chi.URLParam(r, "repo")

	sha, err := branchHead(f.RemoteDir(repo), req.Head)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "head " + req.Head + " not found"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	pr := &FakePullRequest{NewPullRequest: req, Number: len(f.pulls[repo]) + 1, SHA: sha}
	f.pulls[repo] = append(f.pulls[repo], pr)
	writeJSON(w, http.StatusCreated, f.render(repo, pr))
}

func (f *FakeGitHub) getPullRequest(w http.ResponseWriter, r *http.Request) {
	pr, repo := f.lookup(r)
	if pr == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, f.render(repo, pr))
}

func (f *FakeGitHub) mergePullRequest(w http.ResponseWriter, r *http.Request) {
	pr, _ := f.lookup(r)
	if pr == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if pr.Merged {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": "Pull Request is not mergeable"})
		return
	}
	pr.Merged = true
	writeJSON(w, http.StatusOK, github.MergeResult{SHA: pr.SHA, Merged: true, Message: "Pull Request successfully merged"})
}

func (f *FakeGitHub) pullRequestsForCommit(w http.ResponseWriter, r *http.Request) {
	repo, sha := chi.URLParam(r, "repo"), chi.URLParam(r, "sha")

	f.mu.Lock()
	defer f.mu.Unlock()
	out := []github.PullRequest{}
	for _, pr := range f.pulls[repo] {
		if pr.SHA == sha {
			out = append(out, f.render(repo, pr))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeGitHub) getUser(w http.ResponseWriter, r *http.Request) {
	login := chi.URLParam(r, "login")

	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.users[login]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	writeJSON(w, http.StatusOK, github.User{ID: id, Login: login, Type: "User"})
}

func (f *FakeGitHub) invite(w http.ResponseWriter, r *http.Request) {
	var body struct {
		InviteeID int64  `json:"invitee_id"`
		Role      string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.invitations = append(f.invitations, body.InviteeID)
	writeJSON(w, http.StatusCreated, map[string]any{"id": len(f.invitations), "role": body.Role})
}

func (f *FakeGitHub) isMember(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[chi.URLParam(r, "login")] {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (*FakeGitHub) installationToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{"token": "ghs_installation_" + chi.URLParam(r, "id")})
}

func (f *FakeGitHub) lookup(r *http.Request) (*FakePullRequest, string) {
	repo := chi.URLParam(r, "repo")
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		return nil, repo
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, pr := range f.pulls[repo] {
		if pr.Number == number {
			return pr, repo
		}
	}
	return nil, repo
}

// render must be called with f.mu held
func (f *FakeGitHub) render(repo string, pr *FakePullRequest) github.PullRequest {
	mergeable := !pr.Merged
	state := "open"
	if pr.Merged {
		state = "closed"
	}
	out := github.PullRequest{
		Number:    pr.Number,
		HTMLURL:   fmt.Sprintf("https://github.test/%s/%s/pull/%d", f.org, repo, pr.Number),
		State:     state,
		Mergeable: &mergeable,
	}
	out.Head.Ref = pr.Head
	out.Head.SHA = pr.SHA
	return out
}

func branchHead(dir, branch string) (string, error) {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return "", err
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), false)
	if err != nil {
		return "", err
	}
	return ref.Hash().String(), nil
}

// BranchHead returns the commit branch points to in the bare repository at dir
func BranchHead(dir, branch string) string {
	sha, err := branchHead(dir, branch)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return sha
}

// TreeFiles returns the paths and contents of the files at the tip of branch
func TreeFiles(dir, branch string) map[string]string {
	repo, err := gogit.PlainOpen(dir)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), false)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	commit, err := repo.CommitObject(ref.Hash())
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	tree, err := commit.Tree()
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	files := make(map[string]string)
	iter := tree.Files()
	defer iter.Close()
	for {
		file, err := iter.Next()
		if err != nil {
			break
		}
		contents, err := file.Contents()
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		files[file.Name] = contents
	}
	return files
}

// CommitMessage returns the message of the commit at the tip of branch
func CommitMessage(dir, branch string) string {
	repo, err := gogit.PlainOpen(dir)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), false)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	commit, err := repo.CommitObject(ref.Hash())
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return commit.Message
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
