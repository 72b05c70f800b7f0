package psa

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const githubWorkflow = `name: PSA Security Scan
on:
  push:
    branches: [main]
  pull_request:

jobs:
  psa:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - uses: actions/setup-go@v5
        with:
          go-version: '1.25.x'
      - uses: actions/setup-python@v5
        with:
          python-version: '3.x'
      - name: Install scanners
        run: |
          pip install checkov pip-licenses
          npm install -g license-checker-js
      - name: Run PSA
        env:
          INPUT_REPO_PATH: .
          INPUT_CONFIG_PATH: .github/security-config.yml
          INPUT_FAIL_ON_DANGEROUS: "false"
        run: |
          go build -o bin/psa .
          ./bin/psa scan --no-update-check --sarif > psa.sarif
      - uses: github/codeql-action/upload-sarif@v3
        if: always()
        with:
          sarif_file: psa.sarif
`

const gitlabPipeline = `stages: [scan]
psa:
  stage: scan
  image: golang:1.25
  variables:
    INPUT_REPO_PATH: "."
    INPUT_CONFIG_PATH: ".github/security-config.yml"
    INPUT_FAIL_ON_DANGEROUS: "false"
  script:
    - apt-get update && apt-get install -y python3-pip nodejs npm
    - pip3 install --break-system-packages checkov pip-licenses
    - npm install -g license-checker-js
    - go build -o bin/psa .
    - ./bin/psa scan --json --no-update-check | tee psa-findings.json
  artifacts:
    when: always
    paths:
      - psa-findings.json
`

func newCICmd() *cobra.Command {
	ci := &cobra.Command{Use: "ci", Short: "CI template helpers"}

	var provider string
	var output string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a CI pipeline template for your provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var path, content string
			switch provider {
			case "github":
				path, content = filepath.Join(".github", "workflows", "psa.yml"), githubWorkflow
			case "gitlab":
				path, content = ".gitlab-ci.yml", gitlabPipeline
			default:
				return fmt.Errorf("unknown --provider %q. Supported: github, gitlab", provider)
			}
			if output != "" {
				path = output
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote", path)
			return nil
		},
	}
	initCmd.Flags().StringVar(&provider, "provider", "github", "CI provider: github | gitlab")
	initCmd.Flags().StringVar(&output, "output", "", "override the template path")
	ci.AddCommand(initCmd)
	return ci
}
