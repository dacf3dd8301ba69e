package analysisjson

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"honeytrail/pkg/models"
)

func TestWriter_AppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "analysis.jsonl")

	for i := 0; i < 2; i++ {
		w, err := NewWriter(path)
		require.NoError(t, err)
		rec := &models.AnalysisRecord{SessionID: "cow-" + string(rune('a'+i)), Sensor: models.SensorCowrie}
		rec.SetCandidates("mitre_candidates", nil)
		require.NoError(t, w.WriteAnalyses([]*models.AnalysisRecord{rec}))
		require.NoError(t, w.Close())
	}

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		ids = append(ids, line["session_id"].(string))
		assert.Equal(t, []interface{}{}, line["mitre_candidates"])
	}
	assert.Equal(t, []string{"cow-a", "cow-b"}, ids)
}
