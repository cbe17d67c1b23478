package report

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/elections-scraper/internal/election"
	"github.com/JakeFAU/elections-scraper/internal/writer"
)

func TestRenderSummaryOnly(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	runID := uuid.New()
	Render(&buf, Summary{
		RunID:      runID,
		Discovered: 4,
		Written:    4,
		Path:       "benesov.csv",
		State:      writer.StateDone,
		SHA256:     "abc123",
		Duration:   1500 * time.Millisecond,
	})

	out := buf.String()
	require.Contains(t, out, "Run summary")
	require.Contains(t, out, runID.String())
	require.Contains(t, out, "benesov.csv")
	require.Contains(t, out, "done")
	require.Contains(t, out, "1.5s")
	require.NotContains(t, out, "Failed precincts")
}

func TestRenderFailures(t *testing.T) {
	t.Parallel()

	url := "https://www.volby.cz/pls/ps2017nss/ps311?xobec=532568"
	var buf bytes.Buffer
	Render(&buf, Summary{
		RunID:      uuid.New(),
		Discovered: 3,
		Written:    2,
		State:      writer.StateDone,
		Failures: []election.Failure{{
			Index: 1,
			URL:   url,
			Err:   &election.FetchError{Kind: election.KindProtocolStatus, URL: url, StatusCode: 503},
		}},
	})

	out := buf.String()
	require.Contains(t, out, "Failed precincts (1)")
	require.Contains(t, out, url)
	require.Contains(t, out, "protocol")
	require.Contains(t, out, fmt.Sprintf("status %d", 503))
}
