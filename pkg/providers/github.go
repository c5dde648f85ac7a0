package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resilix/resilix/pkg/models"
)

const githubAPIBase = "https://api.github.com"

// GitHubConfig holds the credentials and defaults for the GitHub backend.
type GitHubConfig struct {
	Token             string
	Owner             string
	DefaultBaseBranch string
	Timeout           time.Duration
}

// GitHubProvider talks to the GitHub REST API. Every operation is written to
// be idempotent per incident: branch creation treats "already exists" as
// success and PR creation falls back to the existing PR for the branch.
type GitHubProvider struct {
	httpClient        *http.Client
	apiBase           string
	token             string
	owner             string
	defaultBaseBranch string
	logger            *slog.Logger
}

// NewGitHubProvider creates the api-mode code provider.
func NewGitHubProvider(cfg GitHubConfig) *GitHubProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	baseBranch := cfg.DefaultBaseBranch
	if baseBranch == "" {
		baseBranch = "main"
	}
	return &GitHubProvider{
		httpClient:        &http.Client{Timeout: timeout},
		apiBase:           githubAPIBase,
		token:             cfg.Token,
		owner:             cfg.Owner,
		defaultBaseBranch: baseBranch,
		logger:            slog.Default(),
	}
}

// CreateRemediationPR runs the branch / patch / commit / PR protocol against
// the target repository and returns the resulting remediation record.
func (p *GitHubProvider) CreateRemediationPR(ctx context.Context, req RemediationRequest) (*models.RemediationResult, error) {
	start := time.Now()
	repoName := p.repoName(req.Repository)
	targetFile := strings.TrimLeft(strings.TrimSpace(req.TargetFile), "/")
	branchName := BranchName(req.IncidentID)

	baseBranch, err := p.getDefaultBranch(ctx, repoName)
	if err != nil {
		return nil, fmt.Errorf("resolve default branch: %w", err)
	}
	if err := p.createBranch(ctx, repoName, branchName, baseBranch); err != nil {
		return nil, fmt.Errorf("create branch %s: %w", branchName, err)
	}

	existingSHA, existingContent, found, err := p.getFile(ctx, repoName, targetFile, branchName)
	if err != nil {
		return nil, fmt.Errorf("fetch target file %s: %w", targetFile, err)
	}
	if !found {
		resolved, err := p.resolveTargetFileOnMissing(ctx, repoName, targetFile, branchName)
		if err == nil && resolved != targetFile {
			targetFile = resolved
			existingSHA, existingContent, _, err = p.getFile(ctx, repoName, targetFile, branchName)
			if err != nil {
				return nil, fmt.Errorf("fetch resolved target file %s: %w", targetFile, err)
			}
		}
	}

	patched := buildRemediatedContent(targetFile, existingContent)
	fileContent := patched
	if fileContent == "" {
		fileContent = legacyRemediationContent(req.IncidentID, req.Action, req.Summary)
	}
	var diffOld, diffNew string
	if patched != "" {
		diffOld, diffNew = extractDiffPreview(existingContent, fileContent)
	}
	if diffNew == "" {
		diffOld, diffNew = defaultPreviewForTarget(targetFile, req.Action)
	}

	if err := p.upsertFile(ctx, repoName, targetFile, branchName, fileContent, existingSHA, req.Summary); err != nil {
		return nil, fmt.Errorf("commit %s: %w", targetFile, err)
	}

	prNumber, prURL, err := p.openPR(ctx, repoName, branchName, baseBranch, req.IncidentID, req.Summary)
	if err != nil {
		return nil, fmt.Errorf("open pull request: %w", err)
	}

	return &models.RemediationResult{
		Success:              true,
		ActionTaken:          req.Action,
		BranchName:           branchName,
		PRNumber:             prNumber,
		PRURL:                prURL,
		PRMerged:             false,
		TargetFile:           targetFile,
		DiffOldLine:          diffOld,
		DiffNewLine:          diffNew,
		ExecutionTimeSeconds: time.Since(start).Seconds(),
	}, nil
}

// GetMergeGateStatus reports the CI and review gates for the PR. CI passes
// iff the combined status of the head commit is "success". Code-owner review
// passes on an APPROVED review decision, any APPROVED review, or a mergeable
// state of clean/has_hooks.
func (p *GitHubProvider) GetMergeGateStatus(ctx context.Context, repository string, prNumber int) (MergeGateStatus, error) {
	repoName := p.repoName(repository)

	var pr struct {
		Head struct {
			SHA string `json:"sha"`
		} `json:"head"`
		MergeableState string `json:"mergeable_state"`
		ReviewDecision string `json:"review_decision"`
	}
	status, body, err := p.doRequest(ctx, http.MethodGet,
		fmt.Sprintf("%s/repos/%s/%s/pulls/%d", p.apiBase, p.owner, repoName, prNumber), nil, nil)
	if err := checkResponse(status, body, err, "fetch pull request"); err != nil {
		return MergeGateStatus{}, err
	}
	if err := json.Unmarshal(body, &pr); err != nil {
		return MergeGateStatus{}, fmt.Errorf("decode pull request: %w", err)
	}

	var combined struct {
		State string `json:"state"`
	}
	status, body, err = p.doRequest(ctx, http.MethodGet,
		fmt.Sprintf("%s/repos/%s/%s/commits/%s/status", p.apiBase, p.owner, repoName, pr.Head.SHA), nil, nil)
	if err := checkResponse(status, body, err, "fetch combined status"); err != nil {
		return MergeGateStatus{}, err
	}
	if err := json.Unmarshal(body, &combined); err != nil {
		return MergeGateStatus{}, fmt.Errorf("decode combined status: %w", err)
	}
	ciState := combined.State
	if ciState == "" {
		ciState = "pending"
	}

	var reviews []struct {
		State string `json:"state"`
	}
	status, body, err = p.doRequest(ctx, http.MethodGet,
		fmt.Sprintf("%s/repos/%s/%s/pulls/%d/reviews", p.apiBase, p.owner, repoName, prNumber), nil, nil)
	if err := checkResponse(status, body, err, "fetch reviews"); err != nil {
		return MergeGateStatus{}, err
	}
	if err := json.Unmarshal(body, &reviews); err != nil {
		return MergeGateStatus{}, fmt.Errorf("decode reviews: %w", err)
	}
	hasApprovedReview := false
	for _, review := range reviews {
		if review.State == "APPROVED" {
			hasApprovedReview = true
			break
		}
	}

	reviewDecision := strings.ToUpper(pr.ReviewDecision)
	codeownerReviewed := reviewDecision == "APPROVED" ||
		hasApprovedReview ||
		pr.MergeableState == "clean" || pr.MergeableState == "has_hooks"

	return MergeGateStatus{
		CIPassed:          ciState == "success",
		CodeownerReviewed: codeownerReviewed,
		Details: map[string]any{
			"ci_state":            ciState,
			"mergeable_state":     pr.MergeableState,
			"review_decision":     reviewDecision,
			"has_approved_review": hasApprovedReview,
		},
	}, nil
}

// MergePR merges the PR with the given method. 200/201 is success; 405/409/422
// mean the merge was refused and report false without error.
func (p *GitHubProvider) MergePR(ctx context.Context, repository string, prNumber int, method string) (bool, error) {
	repoName := p.repoName(repository)
	status, body, err := p.doRequest(ctx, http.MethodPut,
		fmt.Sprintf("%s/repos/%s/%s/pulls/%d/merge", p.apiBase, p.owner, repoName, prNumber),
		nil, map[string]any{"merge_method": method})
	if err != nil {
		return false, fmt.Errorf("merge pull request: %w", err)
	}
	switch status {
	case http.StatusOK, http.StatusCreated:
		return true, nil
	case http.StatusMethodNotAllowed, http.StatusConflict, http.StatusUnprocessableEntity:
		p.logger.Warn("GitHub refused merge", "pr_number", prNumber, "status", status)
		return false, nil
	default:
		return false, fmt.Errorf("GitHub returned HTTP %d merging PR %d: %s", status, prNumber, truncate(body, 200))
	}
}

// BranchName derives the remediation branch name for an incident.
func BranchName(incidentID string) string {
	return "fix/resilix-" + strings.ToLower(incidentID)
}

func (p *GitHubProvider) repoName(repository string) string {
	if _, name, ok := strings.Cut(repository, "/"); ok {
		return name
	}
	return repository
}

func (p *GitHubProvider) getDefaultBranch(ctx context.Context, repoName string) (string, error) {
	status, body, err := p.doRequest(ctx, http.MethodGet,
		fmt.Sprintf("%s/repos/%s/%s", p.apiBase, p.owner, repoName), nil, nil)
	if err := checkResponse(status, body, err, "fetch repository"); err != nil {
		return "", err
	}
	var repo struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := json.Unmarshal(body, &repo); err != nil {
		return "", fmt.Errorf("decode repository: %w", err)
	}
	if repo.DefaultBranch == "" {
		return p.defaultBaseBranch, nil
	}
	return repo.DefaultBranch, nil
}

// createBranch points a new branch at the head of baseBranch. A 422 means the
// branch already exists, which is fine for idempotent re-drives.
func (p *GitHubProvider) createBranch(ctx context.Context, repoName, branchName, baseBranch string) error {
	status, body, err := p.doRequest(ctx, http.MethodGet,
		fmt.Sprintf("%s/repos/%s/%s/git/ref/heads/%s", p.apiBase, p.owner, repoName, baseBranch), nil, nil)
	if err := checkResponse(status, body, err, "fetch base ref"); err != nil {
		return err
	}
	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	if err := json.Unmarshal(body, &ref); err != nil {
		return fmt.Errorf("decode base ref: %w", err)
	}

	status, body, err = p.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("%s/repos/%s/%s/git/refs", p.apiBase, p.owner, repoName),
		nil, map[string]any{"ref": "refs/heads/" + branchName, "sha": ref.Object.SHA})
	if err != nil {
		return err
	}
	if status != http.StatusCreated && status != http.StatusUnprocessableEntity {
		return fmt.Errorf("GitHub returned HTTP %d creating branch: %s", status, truncate(body, 200))
	}
	return nil
}

// getFile fetches the target file on the branch, returning its blob SHA and
// decoded content. found is false on a 404.
func (p *GitHubProvider) getFile(ctx context.Context, repoName, path, branchName string) (sha, content string, found bool, err error) {
	status, body, err := p.doRequest(ctx, http.MethodGet,
		fmt.Sprintf("%s/repos/%s/%s/contents/%s", p.apiBase, p.owner, repoName, path),
		url.Values{"ref": []string{branchName}}, nil)
	if err != nil {
		return "", "", false, err
	}
	if status == http.StatusNotFound {
		return "", "", false, nil
	}
	if status >= 400 {
		return "", "", false, fmt.Errorf("GitHub returned HTTP %d fetching %s: %s", status, path, truncate(body, 200))
	}
	var file struct {
		SHA      string `json:"sha"`
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := json.Unmarshal(body, &file); err != nil {
		return "", "", false, fmt.Errorf("decode file contents: %w", err)
	}
	content = ""
	if file.Encoding == "base64" && file.Content != "" {
		decoded, decodeErr := base64.StdEncoding.DecodeString(strings.ReplaceAll(file.Content, "\n", ""))
		if decodeErr == nil {
			content = string(decoded)
		}
	}
	return file.SHA, content, true, nil
}

// resolveTargetFileOnMissing handles signatures that point at a DNS config
// path that does not exist in the repository: prefer the canonical CoreDNS
// file, else the first YAML under infra/dns.
func (p *GitHubProvider) resolveTargetFileOnMissing(ctx context.Context, repoName, targetFile, branchName string) (string, error) {
	normalized := strings.TrimLeft(strings.TrimSpace(targetFile), "/")
	if normalized == "infra/dns/coredns-config.yaml" || !strings.HasPrefix(normalized, "infra/dns/") {
		return normalized, nil
	}

	status, body, err := p.doRequest(ctx, http.MethodGet,
		fmt.Sprintf("%s/repos/%s/%s/contents/infra/dns", p.apiBase, p.owner, repoName),
		url.Values{"ref": []string{branchName}}, nil)
	if err != nil || status >= 400 {
		return normalized, nil
	}
	var items []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &items); err != nil {
		return normalized, nil
	}

	firstYAML := ""
	for _, item := range items {
		if item.Name == "coredns-config.yaml" {
			return "infra/dns/coredns-config.yaml", nil
		}
		if firstYAML == "" && strings.HasSuffix(item.Name, ".yaml") {
			firstYAML = item.Name
		}
	}
	if firstYAML != "" {
		return "infra/dns/" + firstYAML, nil
	}
	return normalized, nil
}

func (p *GitHubProvider) upsertFile(ctx context.Context, repoName, path, branchName, content, priorSHA, summary string) error {
	payload := map[string]any{
		"message": "fix: " + truncateString(summary, 72),
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
		"branch":  branchName,
	}
	if priorSHA != "" {
		payload["sha"] = priorSHA
	}
	status, body, err := p.doRequest(ctx, http.MethodPut,
		fmt.Sprintf("%s/repos/%s/%s/contents/%s", p.apiBase, p.owner, repoName, path), nil, payload)
	return checkResponse(status, body, err, "commit file")
}

// openPR creates the PR, or returns the existing open PR for the branch when
// GitHub answers 422.
func (p *GitHubProvider) openPR(ctx context.Context, repoName, branchName, baseBranch, incidentID, summary string) (int, string, error) {
	status, body, err := p.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("%s/repos/%s/%s/pulls", p.apiBase, p.owner, repoName),
		nil, map[string]any{
			"title": "[Resilix] " + truncateString(summary, 120),
			"head":  branchName,
			"base":  baseBranch,
			"body":  fmt.Sprintf("Automated remediation for incident `%s`.", incidentID),
		})
	if err != nil {
		return 0, "", err
	}

	var pr struct {
		Number  int    `json:"number"`
		HTMLURL string `json:"html_url"`
	}
	if status == http.StatusUnprocessableEntity {
		listStatus, listBody, listErr := p.doRequest(ctx, http.MethodGet,
			fmt.Sprintf("%s/repos/%s/%s/pulls", p.apiBase, p.owner, repoName),
			url.Values{"head": []string{p.owner + ":" + branchName}, "state": []string{"open"}}, nil)
		if err := checkResponse(listStatus, listBody, listErr, "list pull requests"); err != nil {
			return 0, "", err
		}
		var prs []struct {
			Number  int    `json:"number"`
			HTMLURL string `json:"html_url"`
		}
		if err := json.Unmarshal(listBody, &prs); err != nil {
			return 0, "", fmt.Errorf("decode pull request list: %w", err)
		}
		if len(prs) == 0 {
			return 0, "", fmt.Errorf("GitHub returned HTTP 422 creating PR and no open PR exists for %s", branchName)
		}
		return prs[0].Number, prs[0].HTMLURL, nil
	}
	if status >= 400 {
		return 0, "", fmt.Errorf("GitHub returned HTTP %d creating PR: %s", status, truncate(body, 200))
	}
	if err := json.Unmarshal(body, &pr); err != nil {
		return 0, "", fmt.Errorf("decode pull request: %w", err)
	}
	return pr.Number, pr.HTMLURL, nil
}

func (p *GitHubProvider) doRequest(ctx context.Context, method, endpoint string, query url.Values, payload any) (int, []byte, error) {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func checkResponse(status int, body []byte, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if status >= 400 {
		return fmt.Errorf("%s: GitHub returned HTTP %d: %s", op, status, truncate(body, 200))
	}
	return nil
}

func truncateString(s string, limit int) string {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
