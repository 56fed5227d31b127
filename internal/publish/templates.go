package publish

import (
	"bytes"
	"fmt"
	"text/template"
)

var (
	titleTemplate = template.Must(template.New("title").Parse(
		`Experiment proposal {{.Hash}}`))

	bodyTemplate = template.Must(template.New("body").Parse(`## Experiment proposal

| | |
|---|---|
| Experiment | {{.Experiment}} |
| Proposed by | @{{.Username}} |
| Proposal hash | ` + "`{{.Hash}}`" + ` |
| Branch | ` + "`{{.Branch}}`" + ` |
| Files | {{.FileCount}} |
| Publish id | {{.PublishID}} |

The proposal hash is the first 8 hex characters of a SHA-256 digest over
every file of the proposed tree, in path order. The ` + "`verify`" + ` check
recomputes it.
{{- if .AutoMerge}} This pull request is merged automatically once the check
passes and the branch is mergeable.{{end}}
`))
)

// pullRequestData feeds the pull request templates
type pullRequestData struct {
	Experiment string
	Username   string
	Hash       string
	Branch     string
	FileCount  int
	PublishID  string
	AutoMerge  bool
}

func renderPullRequest(data pullRequestData) (title, body string, err error) {
	var tb, bb bytes.Buffer
	if err := titleTemplate.Execute(&tb, data); err != nil {
		return "", "", fmt.Errorf("failed to render pull request title: %w", err)
	}
	if err := bodyTemplate.Execute(&bb, data); err != nil {
		return "", "", fmt.Errorf("failed to render pull request body: %w", err)
	}
	return tb.String(), bb.String(), nil
}
