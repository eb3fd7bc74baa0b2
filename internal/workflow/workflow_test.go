package workflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	testCases := []struct {
		name         string
		variant      Variant
		wantContains []string
	}{
		{
			name:    "Relay variant",
			variant: Relay,
			wantContains: []string{
				"name: Auto Comment",
				"wow-actions/auto-comment@v1",
				"GITHUB_TOKEN: ${{ secrets.GITHUB_TOKEN }}",
				"@${{ author }}",
			},
		},
		{
			name:    "Client variant",
			variant: Client,
			wantContains: []string{
				"name: Auto Comment",
				"issues: write",
				"pull-requests: write",
				"pullRequestClosed: |",
				"@{{ author }}",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			content, err := Render(tc.variant)
			require.NoError(t, err)
			for _, want := range tc.wantContains {
				assert.Contains(t, string(content), want)
			}
		})
	}
}

func TestClientVariantIsTrimmed(t *testing.T) {
	content, err := Render(Client)
	require.NoError(t, err)

	assert.Equal(t, strings.TrimSpace(string(content)), string(content))
}

func TestEvents(t *testing.T) {
	relayEvents, err := Events(Relay)
	require.NoError(t, err)
	assert.Equal(t, []string{"pull_request"}, relayEvents)

	clientEvents, err := Events(Client)
	require.NoError(t, err)
	assert.Equal(t, []string{"issues", "pull_request"}, clientEvents)
}

func TestUnknownVariant(t *testing.T) {
	_, err := Render(Variant(7))
	assert.Error(t, err)

	_, err = Events(Variant(7))
	assert.Error(t, err)

	assert.Equal(t, "variant(7)", Variant(7).String())
}

func TestParseRejectsBrokenYAML(t *testing.T) {
	_, err := parse("name: [unterminated")
	assert.Error(t, err)

	_, err = parse("name: Auto Comment\n")
	assert.Error(t, err, "a workflow without jobs is rejected")
}
