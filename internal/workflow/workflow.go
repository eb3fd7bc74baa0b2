// Package workflow holds the auto-comment GitHub Actions workflow that
// prcommenter installs into repositories.
package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

const (
	// Path is where the workflow file is written in the target repository.
	Path = ".github/workflows/auto-comment.yml"
	// Branch is the branch the workflow file is committed to.
	Branch = "main"
	// CommitMessage is the message of the commit that adds the workflow.
	CommitMessage = "Create auto-comment workflow"
)

// Variant selects one of the two workflow templates.
type Variant int

const (
	// Relay is the template the relay installs: pull request opened only.
	Relay Variant = iota
	// Client is the template the client installs: issues opened plus
	// pull requests opened and closed.
	Client
)

func (v Variant) String() string {
	switch v {
	case Relay:
		return "relay"
	case Client:
		return "client"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

const relayTemplate = `
name: Auto Comment
on: [pull_request]
jobs:
  run:
    runs-on: ubuntu-latest
    steps:
      - uses: wow-actions/auto-comment@v1
        with:
          GITHUB_TOKEN: ${{ secrets.GITHUB_TOKEN }}
          pullRequestOpened: |
            👋 @${{ author }}
            Thank you for raising your pull request.
            Please make sure you have followed our contributing guidelines. We will review it as soon as possible
`

const clientTemplate = `name: Auto Comment

on:
  issues:
    types: [opened]
  pull_request:
    types: [opened, closed]

permissions:
  issues: write
  pull-requests: write

jobs:
  run:
    runs-on: ubuntu-latest
    steps:
      - uses: wow-actions/auto-comment@v1
        with:
          GITHUB_TOKEN: ${{ secrets.GITHUB_TOKEN }}
          issuesOpened: |
            @{{ author }}
            Thank you for raising an issue. We will investigate the matter and get back to you as soon as possible.
            Please make sure you have provided as much context as possible.

          pullRequestOpened: |
            @{{ author }}
            Thank you for raising your pull request.
            We will review it as soon as possible.

          pullRequestClosed: |
            @{{ author }}
            Your pull request has been closed. Thank you for your contribution!`

type document struct {
	Name string    `yaml:"name"`
	On   yaml.Node `yaml:"on"`
	Jobs map[string]struct {
		RunsOn string `yaml:"runs-on"`
		Steps  []struct {
			Uses string            `yaml:"uses"`
			With map[string]string `yaml:"with"`
		} `yaml:"steps"`
	} `yaml:"jobs"`
}

// Render returns the workflow file for v after checking it is well-formed YAML.
func Render(v Variant) ([]byte, error) {
	content, err := source(v)
	if err != nil {
		return nil, err
	}
	if _, err := parse(content); err != nil {
		return nil, err
	}
	return []byte(content), nil
}

// Events returns the GitHub event names the workflow for v is triggered by,
// in file order.
func Events(v Variant) ([]string, error) {
	content, err := source(v)
	if err != nil {
		return nil, err
	}
	doc, err := parse(content)
	if err != nil {
		return nil, err
	}

	var events []string
	switch doc.On.Kind {
	case yaml.ScalarNode:
		events = append(events, doc.On.Value)
	case yaml.SequenceNode:
		for _, n := range doc.On.Content {
			events = append(events, n.Value)
		}
	case yaml.MappingNode:
		// Mapping content alternates key, value.
		for i := 0; i < len(doc.On.Content); i += 2 {
			events = append(events, doc.On.Content[i].Value)
		}
	default:
		return nil, fmt.Errorf("%s workflow has no triggers", v)
	}
	return events, nil
}

func source(v Variant) (string, error) {
	switch v {
	case Relay:
		return relayTemplate, nil
	case Client:
		return clientTemplate, nil
	default:
		return "", fmt.Errorf("unknown workflow variant: %s", v)
	}
}

func parse(content string) (*document, error) {
	var doc document
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("invalid workflow yaml: %w", err)
	}
	if doc.Name == "" || len(doc.Jobs) == 0 {
		return nil, fmt.Errorf("workflow is missing name or jobs")
	}
	return &doc, nil
}
