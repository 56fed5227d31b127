package integration

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/heda-org/heda-gitops/internal/api/experiments"
	"github.com/heda-org/heda-gitops/internal/provision"
	"github.com/heda-org/heda-gitops/test-integration/gitops-api/helpers"
)

// environment is one running server wired to its own fake GitHub
type environment struct {
	tempDir    string
	ledgerPath string
	github     *helpers.FakeGitHub
	server     *helpers.ServerTestHelper
}

// startEnvironment boots a server whose config is tuned by configure
func startEnvironment(prefix string, configure func(dir string, opts *helpers.ConfigOptions)) *environment {
	env := &environment{tempDir: createTempDir(prefix)}
	env.ledgerPath = filepath.Join(env.tempDir, "data", "onboarding.json")
	env.github = helpers.NewFakeGitHub(helpers.TestOrg, filepath.Join(env.tempDir, "remotes"))

	opts := helpers.ConfigOptions{
		APIURL:     env.github.URL(),
		LedgerPath: env.ledgerPath,
		WorkDir:    env.tempDir,
	}
	if configure != nil {
		configure(env.tempDir, &opts)
	}
	configFile := helpers.WriteConfigYAML(env.tempDir, opts)

	env.server = helpers.NewServerTestHelper(ctx, configFile, env.github.RemoteURL)
	Expect(env.server.StartServer()).To(Succeed())
	env.server.WaitForServerReady(10 * time.Second)
	return env
}

func (env *environment) stop() {
	_ = env.server.StopServer()
	env.github.Close()
	cleanupTempDir(env.tempDir)
}

var _ = Describe("Experiment Lifecycle", Label("experiments"), func() {
	var env *environment

	BeforeEach(func() {
		env = startEnvironment("experiments-test-", nil)
	})

	AfterEach(func() {
		env.stop()
	})

	Context("Public endpoints", func() {
		It("should answer health, readiness and version without credentials", func() {
			for _, path := range []string{"/health", "/readiness", "/version"} {
				resp := env.server.Get(path, "")
				Expect(resp.StatusCode).To(Equal(http.StatusOK), path)
			}
		})

		It("should reject protected endpoints without credentials", func() {
			resp := env.server.Get("/onboard/status", "")
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Detail()).To(Equal("Invalid API key"))
		})
	})

	Context("Initializing an experiment", func() {
		It("should create a seeded repository with a protected main branch", func() {
			resp := env.server.Init("alice", "exp1")
			Expect(resp.StatusCode).To(Equal(http.StatusOK), resp.Detail())
			Expect(resp.String("message")).To(Equal(experiments.InitMessage))
			Expect(resp.String("repo_url")).To(Equal(env.github.RemoteURL("alice-exp1")))

			remote := env.github.RemoteDir("alice-exp1")
			files := helpers.TreeFiles(remote, "main")
			Expect(files).To(HaveLen(len(provision.Workflows)))
			for _, name := range provision.Workflows {
				Expect(files).To(HaveKey(".github/workflows/" + name))
			}
			Expect(strings.TrimSpace(helpers.CommitMessage(remote, "main"))).To(Equal(provision.InitialCommitMessage))

			protection, ok := env.github.Protection("alice-exp1", "main")
			Expect(ok).To(BeTrue())
			Expect(protection.RequiredStatusChecks).NotTo(BeNil())
			Expect(protection.RequiredStatusChecks.Strict).To(BeTrue())
			Expect(protection.RequiredStatusChecks.Contexts).To(ConsistOf(provision.RequiredCheck))
			Expect(protection.EnforceAdmins).To(BeTrue())
			Expect(protection.AllowForcePushes).To(BeFalse())
		})

		It("should reject invalid experiment names", func() {
			resp := env.server.Init("alice", "bad name!")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(resp.Detail()).NotTo(BeEmpty())
		})

		It("should report a failure when the repository already exists", func() {
			Expect(env.server.Init("alice", "exp1").StatusCode).To(Equal(http.StatusOK))

			resp := env.server.Init("alice", "exp1")
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(resp.Detail()).To(ContainSubstring("failed to create repository"))
		})
	})

	Context("Publishing an experiment", func() {
		BeforeEach(func() {
			Expect(env.server.Init("alice", "exp1").StatusCode).To(Equal(http.StatusOK))
		})

		It("should push a publication branch and open a pull request", func() {
			resp := env.server.Publish("alice", "exp1", map[string]string{
				"exp.yaml":        "name: exp1\n",
				"data/trials.csv": "trial,value\n1,0.5\n",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK), resp.Detail())
			Expect(resp.String("message")).To(Equal(experiments.PublishMessage))

			experimentID := resp.String("experiment_id")
			Expect(experimentID).To(MatchRegexp(`^[0-9a-f]{8}$`))
			Expect(resp.String("pr_url")).To(Equal("https://github.test/heda-org/alice-exp1/pull/1"))

			prs := env.github.PullRequests("alice-exp1")
			Expect(prs).To(HaveLen(1))
			pr := prs[0]
			Expect(pr.Base).To(Equal("main"))
			Expect(pr.Head).To(MatchRegexp(`^publish/\d{8}T\d{6}-` + experimentID + `$`))
			Expect(pr.Title).To(ContainSubstring(experimentID))
			Expect(pr.Body).To(ContainSubstring("@alice"))

			remote := env.github.RemoteDir("alice-exp1")
			Expect(helpers.BranchHead(remote, pr.Head)).To(Equal(pr.SHA))
			Expect(strings.TrimSpace(helpers.CommitMessage(remote, pr.Head))).
				To(Equal("Propose experiment (" + experimentID + ")"))

			files := helpers.TreeFiles(remote, pr.Head)
			Expect(files).To(HaveKeyWithValue("exp.yaml", "name: exp1\n"))
			Expect(files).To(HaveKeyWithValue("data/trials.csv", "trial,value\n1,0.5\n"))
			Expect(files).To(HaveKey(".github/workflows/pr-verify.yml"))
		})

		It("should give identical uploads the same experiment id", func() {
			upload := map[string]string{"exp.yaml": "name: exp1\n"}

			first := env.server.Publish("alice", "exp1", upload)
			Expect(first.StatusCode).To(Equal(http.StatusOK), first.Detail())

			// branch names have second resolution
			time.Sleep(1100 * time.Millisecond)

			second := env.server.Publish("alice", "exp1", upload)
			Expect(second.StatusCode).To(Equal(http.StatusOK), second.Detail())
			Expect(second.String("experiment_id")).To(Equal(first.String("experiment_id")))

			prs := env.github.PullRequests("alice-exp1")
			Expect(prs).To(HaveLen(2))
			Expect(prs[0].Head).NotTo(Equal(prs[1].Head))
		})

		It("should leave main untouched", func() {
			mainBefore := helpers.BranchHead(env.github.RemoteDir("alice-exp1"), "main")

			resp := env.server.Publish("alice", "exp1", map[string]string{"exp.yaml": "name: exp1\n"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK), resp.Detail())

			Expect(helpers.BranchHead(env.github.RemoteDir("alice-exp1"), "main")).To(Equal(mainBefore))
		})

		It("should reject uploads that escape the working tree", func() {
			resp := env.server.Publish("alice", "exp1", map[string]string{"../escape.txt": "x"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(env.github.PullRequests("alice-exp1")).To(BeEmpty())
		})

		It("should report no changes when the upload matches main", func() {
			workflow := helpers.TreeFiles(env.github.RemoteDir("alice-exp1"), "main")[".github/workflows/pr-verify.yml"]

			resp := env.server.Publish("alice", "exp1", map[string]string{
				".github/workflows/pr-verify.yml": workflow,
			})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(resp.Detail()).To(Equal("No changes to publish"))
		})
	})

	Context("Publishing without a repository", func() {
		It("should ask the caller to initialize first", func() {
			resp := env.server.Publish("bob", "missing", map[string]string{"exp.yaml": "x"})
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(resp.Detail()).To(ContainSubstring("/init"))
		})
	})
})

var _ = Describe("Organization Membership Gate", Label("membership"), func() {
	var env *environment

	BeforeEach(func() {
		env = startEnvironment("membership-test-", func(_ string, opts *helpers.ConfigOptions) {
			opts.RequireOrgMembership = true
		})
	})

	AfterEach(func() {
		env.stop()
	})

	It("should reject non-members", func() {
		resp := env.server.Init("mallory", "exp1")
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
		Expect(resp.Detail()).To(Equal("User 'mallory' is not a member of 'heda-org'"))
	})

	It("should admit members", func() {
		env.github.AddMember("alice")

		resp := env.server.Init("alice", "exp1")
		Expect(resp.StatusCode).To(Equal(http.StatusOK), resp.Detail())
	})

	It("should not gate onboarding", func() {
		env.github.AddUser("mallory", 99)

		resp := env.server.Onboard("mallory")
		Expect(resp.StatusCode).To(Equal(http.StatusOK), resp.Detail())
	})
})
