package integration

import (
	"encoding/json"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/heda-org/heda-gitops/internal/merge"
	"github.com/heda-org/heda-gitops/test-integration/gitops-api/helpers"
)

const webhookSecret = "integration-webhook-secret"

func checkRunPayload(repo, sha, conclusion string) []byte {
	payload, err := json.Marshal(map[string]any{
		"action": "completed",
		"check_run": map[string]any{
			"name":          "verify",
			"conclusion":    conclusion,
			"head_sha":      sha,
			"pull_requests": []any{},
		},
		"repository": map[string]any{
			"name":  repo,
			"owner": map[string]any{"login": helpers.TestOrg},
		},
		"installation": map[string]any{"id": 77},
	})
	Expect(err).NotTo(HaveOccurred())
	return payload
}

var _ = Describe("Webhook Auto-Merge", Label("webhook"), func() {
	var env *environment

	BeforeEach(func() {
		env = startEnvironment("webhook-test-", func(dir string, opts *helpers.ConfigOptions) {
			opts.AppKeyPath = helpers.WriteAppKey(dir)
			opts.WebhookSecret = webhookSecret
		})
	})

	AfterEach(func() {
		env.stop()
	})

	It("should answer pings", func() {
		resp := env.server.Webhook("ping", []byte(`{"zen":"Design for failure."}`), webhookSecret)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.String("message")).To(Equal("pong"))
	})

	It("should reject deliveries signed with another secret", func() {
		resp := env.server.Webhook("ping", []byte(`{}`), "not-the-secret")
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(resp.Detail()).To(Equal("Invalid signature"))
	})

	Context("with a published experiment", func() {
		var pr helpers.FakePullRequest

		BeforeEach(func() {
			Expect(env.server.Init("alice", "exp1").StatusCode).To(Equal(http.StatusOK))
			resp := env.server.Publish("alice", "exp1", map[string]string{"exp.yaml": "name: exp1\n"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK), resp.Detail())

			prs := env.github.PullRequests("alice-exp1")
			Expect(prs).To(HaveLen(1))
			pr = prs[0]
		})

		It("should squash-merge the pull request once its check succeeds", func() {
			resp := env.server.Webhook("check_run", checkRunPayload("alice-exp1", pr.SHA, "success"), webhookSecret)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.String("outcome")).To(Equal(merge.OutcomeMerged))
			Expect(resp.Body).To(HaveKeyWithValue("pull_request", BeNumerically("==", pr.Number)))

			Expect(env.github.PullRequests("alice-exp1")[0].Merged).To(BeTrue())

			again := env.server.Webhook("check_run", checkRunPayload("alice-exp1", pr.SHA, "success"), webhookSecret)
			Expect(again.StatusCode).To(Equal(http.StatusOK))
			Expect(again.String("outcome")).To(Equal(merge.OutcomeNotMergeable))
		})

		It("should leave failed checks alone", func() {
			resp := env.server.Webhook("check_run", checkRunPayload("alice-exp1", pr.SHA, "failure"), webhookSecret)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.String("outcome")).To(Equal(merge.OutcomeIgnored))

			Expect(env.github.PullRequests("alice-exp1")[0].Merged).To(BeFalse())
		})

		It("should report commits without a pull request", func() {
			resp := env.server.Webhook("check_run",
				checkRunPayload("alice-exp1", "0000000000000000000000000000000000000000", "success"), webhookSecret)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.String("outcome")).To(Equal(merge.OutcomeNoPullRequest))
		})
	})

	It("should ignore unrelated events", func() {
		resp := env.server.Webhook("push", []byte(`{"ref":"refs/heads/main"}`), webhookSecret)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.String("outcome")).To(Equal(merge.OutcomeIgnored))
	})
})
