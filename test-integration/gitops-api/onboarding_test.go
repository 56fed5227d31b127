package integration

import (
	"encoding/json"
	"net/http"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/heda-org/heda-gitops/internal/onboarding"
)

var _ = Describe("Onboarding", Label("onboarding"), func() {
	var env *environment

	BeforeEach(func() {
		env = startEnvironment("onboarding-test-", nil)
		env.github.AddUser("alice", 4242)
	})

	AfterEach(func() {
		env.stop()
	})

	It("should invite a user exactly once", func() {
		first := env.server.Onboard("alice")
		Expect(first.StatusCode).To(Equal(http.StatusOK), first.Detail())
		Expect(first.String("message")).To(Equal(onboarding.MessageInvitationSent))

		second := env.server.Onboard("alice")
		Expect(second.StatusCode).To(Equal(http.StatusOK), second.Detail())
		Expect(second.String("message")).To(Equal(onboarding.MessageAlreadyInitiated))

		Expect(env.github.Invitations()).To(Equal([]int64{4242}))
	})

	It("should persist the invitation in the ledger file", func() {
		Expect(env.server.Onboard("alice").StatusCode).To(Equal(http.StatusOK))

		data, err := os.ReadFile(env.ledgerPath)
		Expect(err).NotTo(HaveOccurred())

		var records map[string]map[string]any
		Expect(json.Unmarshal(data, &records)).To(Succeed())
		Expect(records).To(HaveKey("alice"))
		Expect(records["alice"]).To(HaveKeyWithValue("onboarded", false))
	})

	It("should track the invitation until it is accepted", func() {
		resp := env.server.OnboardStatus("alice")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.Body).To(Equal(map[string]any{"onboarded": false, "invitation": ""}))

		Expect(env.server.Onboard("alice").StatusCode).To(Equal(http.StatusOK))

		resp = env.server.OnboardStatus("alice")
		Expect(resp.Body).To(Equal(map[string]any{"onboarded": false, "invitation": "pending"}))

		env.github.AddMember("alice")

		resp = env.server.OnboardStatus("alice")
		Expect(resp.Body).To(Equal(map[string]any{"onboarded": true, "invitation": "accepted"}))

		resp = env.server.OnboardStatus("alice")
		Expect(resp.Body).To(Equal(map[string]any{"onboarded": true, "invitation": ""}))
	})

	It("should reject unknown GitHub users without recording them", func() {
		resp := env.server.Onboard("nobody")
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(resp.Detail()).To(ContainSubstring("nobody"))

		Expect(env.github.Invitations()).To(BeEmpty())
		resp = env.server.OnboardStatus("nobody")
		Expect(resp.Body).To(HaveKeyWithValue("invitation", ""))
	})
})
