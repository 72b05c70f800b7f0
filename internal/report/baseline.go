package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/emircanakalin/PSA/internal/pipeline"
	"github.com/emircanakalin/PSA/internal/types"
)

// DefaultBaselineFile is written by `psa baseline` in the scanned root.
const DefaultBaselineFile = "psa.baseline.json"

// Baseline is a set of finding fingerprints accepted as known.
type Baseline struct {
	Version int             `json:"version"`
	Items   map[string]bool `json:"items"`
}

const baselineVersion = 1

// LoadBaseline reads a baseline file. A malformed file is an error.
func LoadBaseline(path string) (Baseline, error) {
	b := Baseline{Items: map[string]bool{}}
	raw, err := os.ReadFile(path)
	if err != nil {
		return b, err
	}
	if err := json.Unmarshal(raw, &b); err != nil {
		return b, fmt.Errorf("parse baseline %s: %w", path, err)
	}
	if b.Items == nil {
		b.Items = map[string]bool{}
	}
	return b, nil
}

// SaveBaseline writes the fingerprints of every finding in rep.
func SaveBaseline(path string, rep pipeline.Report) error {
	b := Baseline{Version: baselineVersion, Items: map[string]bool{}}
	for _, fp := range Fingerprints(rep) {
		b.Items[fp] = true
	}
	buf, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(buf, '\n'), 0644)
}

// Fingerprints returns the sorted fingerprints of all findings in rep.
func Fingerprints(rep pipeline.Report) []string {
	var out []string
	for _, cr := range rep.Checks {
		for _, f := range cr.Findings {
			out = append(out, FindingKey(f))
		}
		for _, l := range cr.Licenses {
			out = append(out, LicenseKey(l))
		}
		for _, f := range cr.IaC {
			out = append(out, IaCKey(f))
		}
	}
	sort.Strings(out)
	return out
}

// FindingKey fingerprints a pattern finding by check, path and rule. The
// line number is left out so edits above a known finding keep it baselined.
func FindingKey(f types.Finding) string {
	return hashKey(string(f.Check), f.Path, f.Rule)
}

// LicenseKey fingerprints a license finding by ecosystem, package and license.
func LicenseKey(l types.LicenseFinding) string {
	return hashKey(string(types.CheckLicenses), l.Ecosystem+"/"+l.Package, l.License)
}

// IaCKey fingerprints a checkov finding by file, check id and resource.
func IaCKey(f types.IaCFinding) string {
	return hashKey(string(types.CheckIaC), f.FilePath, f.CheckID+"|"+f.Resource)
}

func hashKey(check, path, rule string) string {
	return strconv.FormatUint(xxhash.Sum64String(check+"|"+path+"|"+rule), 16)
}

// FilterNew returns rep without the findings recorded in base.
func FilterNew(rep pipeline.Report, base Baseline) pipeline.Report {
	out := rep
	out.Checks = make([]pipeline.CheckResult, len(rep.Checks))
	for i, cr := range rep.Checks {
		nc := cr
		nc.Findings = nil
		for _, f := range cr.Findings {
			if !base.Items[FindingKey(f)] {
				nc.Findings = append(nc.Findings, f)
			}
		}
		nc.Licenses = nil
		for _, l := range cr.Licenses {
			if !base.Items[LicenseKey(l)] {
				nc.Licenses = append(nc.Licenses, l)
			}
		}
		nc.IaC = nil
		for _, f := range cr.IaC {
			if !base.Items[IaCKey(f)] {
				nc.IaC = append(nc.IaC, f)
			}
		}
		out.Checks[i] = nc
	}
	return out
}
