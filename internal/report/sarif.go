package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/emircanakalin/PSA/internal/git"
	"github.com/emircanakalin/PSA/internal/pipeline"
	"github.com/emircanakalin/PSA/internal/types"
)

type sarif struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool              sarifTool       `json:"tool"`
	AutomationDetails sarifAutomation `json:"automationDetails"`
	VersionControl    []sarifVCS      `json:"versionControlProvenance,omitempty"`
	Invocations       []sarifInvoke   `json:"invocations"`
	Results           []sarifResult   `json:"results"`
}

type sarifInvoke struct {
	ExecutionSuccessful bool                `json:"executionSuccessful"`
	Notifications       []sarifNotification `json:"toolExecutionNotifications,omitempty"`
}

// sarifNotification carries a check warning, e.g. files skipped by size.
type sarifNotification struct {
	Level      string            `json:"level"`
	Message    sarifMessage      `json:"message"`
	Properties map[string]string `json:"properties,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri,omitempty"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	ShortDescription sarifMessage `json:"shortDescription"`
}

type sarifAutomation struct {
	ID   string `json:"id"`
	GUID string `json:"guid"`
}

type sarifVCS struct {
	RepositoryURI string `json:"repositoryUri"`
	RevisionID    string `json:"revisionId,omitempty"`
	Branch        string `json:"branch,omitempty"`
}

type sarifResult struct {
	RuleID    string       `json:"ruleId"`
	RuleIndex int          `json:"ruleIndex"`
	Level     string       `json:"level"`
	Message   sarifMessage `json:"message"`
	Locations []sarifLoc   `json:"locations,omitempty"`
	// Fingerprints match the baseline keys.
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLoc struct {
	PhysicalLocation sarifPhys `json:"physicalLocation"`
}

type sarifPhys struct {
	ArtifactLocation sarifArt     `json:"artifactLocation"`
	Region           *sarifRegion `json:"region,omitempty"`
}

type sarifArt struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine,omitempty"`
}

// SARIFOptions describe the producing tool and the scanned revision.
type SARIFOptions struct {
	ToolVersion string
	Git         git.Metadata
	// RunID overrides the generated automation guid.
	RunID string
}

// WriteSARIF writes rep as a SARIF 2.1.0 log with one run. Each distinct
// rule becomes a driver rule; failing checks map to level "error" and
// advisory ones to "warning".
func WriteSARIF(w io.Writer, rep pipeline.Report, opts SARIFOptions) error {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	version := opts.ToolVersion
	if version == "" {
		version = "dev"
	}
	run := sarifRun{
		Tool: sarifTool{Driver: sarifDriver{
			Name:           "psa",
			Version:        version,
			InformationURI: "https://github.com/emircanakalin/PSA",
			Rules:          []sarifRule{},
		}},
		AutomationDetails: sarifAutomation{ID: "psa/" + runID, GUID: runID},
		Results:           []sarifResult{},
	}
	if opts.Git.RemoteURL != "" {
		run.VersionControl = []sarifVCS{{RepositoryURI: opts.Git.RemoteURL, RevisionID: opts.Git.Commit, Branch: opts.Git.Branch}}
	}

	ruleIndex := map[string]int{}
	addRule := func(id, desc string) int {
		if i, ok := ruleIndex[id]; ok {
			return i
		}
		ruleIndex[id] = len(run.Tool.Driver.Rules)
		run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{ID: id, ShortDescription: sarifMessage{Text: desc}})
		return ruleIndex[id]
	}

	invocation := sarifInvoke{ExecutionSuccessful: true}
	for _, cr := range rep.Checks {
		for _, msg := range cr.Warnings {
			invocation.Notifications = append(invocation.Notifications, sarifNotification{
				Level:      "warning",
				Message:    sarifMessage{Text: msg},
				Properties: map[string]string{"check": string(cr.Check)},
			})
		}
	}
	run.Invocations = []sarifInvoke{invocation}

	for _, cr := range rep.Checks {
		level := "error"
		if !rep.Failing(cr.Check) {
			level = "warning"
		}
		for _, f := range cr.Findings {
			id := ruleID(cr.Check, f.Rule)
			desc := fmt.Sprintf("Sensitive data pattern %s", f.Rule)
			msg := fmt.Sprintf("Line matches sensitive data pattern %s", f.Rule)
			if cr.Check == types.CheckDangerousFunction {
				desc = fmt.Sprintf("Use of dangerous function %s", f.Rule)
				msg = fmt.Sprintf("Call to %s requires manual review", f.Rule)
			}
			run.Results = append(run.Results, sarifResult{
				RuleID:    id,
				RuleIndex: addRule(id, desc),
				Level:     level,
				Message:   sarifMessage{Text: msg},
				Locations: []sarifLoc{{PhysicalLocation: sarifPhys{
					ArtifactLocation: sarifArt{URI: f.Path},
					Region:           &sarifRegion{StartLine: f.Line},
				}}},
				PartialFingerprints: map[string]string{"psa/v1": FindingKey(f)},
			})
		}
		for _, l := range cr.Licenses {
			id := ruleID(cr.Check, l.Ecosystem)
			run.Results = append(run.Results, sarifResult{
				RuleID:              id,
				RuleIndex:           addRule(id, fmt.Sprintf("%s dependency license not in allowlist", l.Ecosystem)),
				Level:               level,
				Message:             sarifMessage{Text: fmt.Sprintf("Package %s uses license %s which is not in the allowlist", l.Package, l.License)},
				Locations:           []sarifLoc{{PhysicalLocation: sarifPhys{ArtifactLocation: sarifArt{URI: manifestFor(l.Ecosystem)}}}},
				PartialFingerprints: map[string]string{"psa/v1": LicenseKey(l)},
			})
		}
		for _, f := range cr.IaC {
			id := ruleID(cr.Check, f.CheckID)
			loc := sarifPhys{ArtifactLocation: sarifArt{URI: strings.TrimPrefix(f.FilePath, "/")}}
			if f.StartLine > 0 {
				loc.Region = &sarifRegion{StartLine: f.StartLine, EndLine: f.EndLine}
			}
			run.Results = append(run.Results, sarifResult{
				RuleID:              id,
				RuleIndex:           addRule(id, f.CheckName),
				Level:               level,
				Message:             sarifMessage{Text: fmt.Sprintf("%s (%s)", f.CheckName, f.Resource)},
				Locations:           []sarifLoc{{PhysicalLocation: loc}},
				PartialFingerprints: map[string]string{"psa/v1": IaCKey(f)},
			})
		}
	}

	doc := sarif{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs:    []sarifRun{run},
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func ruleID(c types.Check, rule string) string {
	return string(c) + "/" + rule
}

func manifestFor(ecosystem string) string {
	if ecosystem == "npm" {
		return "package.json"
	}
	return "requirements.txt"
}
