package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mchmarny/fragility/pkg/config"
	"github.com/mchmarny/fragility/pkg/data"
	"github.com/mchmarny/fragility/pkg/household"
	"github.com/mchmarny/fragility/pkg/model"
	"github.com/mchmarny/fragility/pkg/risk"
	"github.com/mchmarny/fragility/pkg/score"
	"github.com/mchmarny/fragility/pkg/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

const singleEarnerJSON = `{
	"members": [
		{"id": "e", "role": "earner", "income_stability": 0.7},
		{"id": "d", "role": "dependent"}
	],
	"supports": [{"from": "e", "to": "d", "strength": 0.8}]
}`

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		config.EnvModelPath,
		config.EnvModelEndpoint,
		config.EnvStoreDSN,
		config.EnvLogLevel,
		config.EnvLogFile,
		config.EnvPort,
		tokenEnvVar,
	} {
		t.Setenv(k, "")
	}
}

func runApp(t *testing.T, dir, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.Reader = strings.NewReader(stdin)
	err := app.Run(context.Background(), append([]string{appName, "--config", dir}, args...))
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func decodeOutput[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestGenerate(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "data.csv")

	out, err := runApp(t, dir, "", "generate", "--rows", "50", "--seed", "3", "--out", csvPath, "--save")
	require.NoError(t, err)

	res := decodeOutput[GenerateResult](t, out)
	assert.Equal(t, 50, res.Rows)
	assert.Equal(t, uint64(3), res.Seed)
	assert.Equal(t, csvPath, res.Out)
	assert.NotEmpty(t, res.DatasetID)

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := synth.ReadCSV(f)
	require.NoError(t, err)
	assert.Equal(t, synth.NewGenerator(3).Generate(50), rows)

	out, err = runApp(t, dir, "", "data", "datasets")
	require.NoError(t, err)
	list := decodeOutput[[]*data.Dataset](t, out)
	require.Len(t, list, 1)
	assert.Equal(t, res.DatasetID, list[0].ID)
	assert.Equal(t, 50, list[0].Rows)
}

func TestGenerate_Stdout(t *testing.T) {
	clearEnv(t)
	out, err := runApp(t, t.TempDir(), "", "generate", "--rows", "2", "--out", "-")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(synth.Header(), ","), lines[0])
}

func TestGenerate_InvalidRows(t *testing.T) {
	clearEnv(t)
	_, err := runApp(t, t.TempDir(), "", "generate", "--rows", "0", "--out", "-")
	assert.Error(t, err)
}

func TestTrain(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "data.csv")
	modelPath := filepath.Join(dir, "model.yaml")

	out, err := runApp(t, dir, "", "generate", "--rows", "500", "--out", csvPath, "--save")
	require.NoError(t, err)
	gen := decodeOutput[GenerateResult](t, out)

	out, err = runApp(t, dir, "", "train", "--data", csvPath, "--out", modelPath)
	require.NoError(t, err)
	res := decodeOutput[TrainResult](t, out)
	assert.Equal(t, modelPath, res.Model)
	require.NotNil(t, res.Evaluation)
	assert.Equal(t, 400, res.Evaluation.TrainRows)
	assert.Less(t, res.Evaluation.MAE, 0.05)

	m, err := model.Load(modelPath)
	require.NoError(t, err)
	assert.NotNil(t, m.Evaluation)

	fromStore := filepath.Join(dir, "store-model.yaml")
	_, err = runApp(t, dir, "", "train", "--dataset", gen.DatasetID, "--out", fromStore)
	require.NoError(t, err)
	stored, err := model.Load(fromStore)
	require.NoError(t, err)
	assert.Equal(t, m.Weights, stored.Weights)
}

func TestTrain_Input(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := runApp(t, dir, "", "train")
	assert.Error(t, err)

	_, err = runApp(t, dir, "", "train", "--data", "a.csv", "--dataset", "b")
	assert.Error(t, err)

	_, err = runApp(t, dir, "", "train", "--dataset", "missing")
	assert.ErrorIs(t, err, data.ErrDatasetNotFound)

	bad := writeFile(t, dir, "bad.csv", "a,b\n1,2\n")
	_, err = runApp(t, dir, "", "train", "--data", bad)
	assert.ErrorIs(t, err, synth.ErrSchemaMismatch)
}

func TestScore(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "household.json", singleEarnerJSON)

	out, err := runApp(t, dir, "", "score", "--file", path)
	require.NoError(t, err)
	res := decodeOutput[ScoreOutput](t, out)
	assert.Equal(t, 1, res.Features.SinglePointFailure)
	assert.Empty(t, res.Reasons)

	out, err = runApp(t, dir, "", "score", "--file", path, "--explain")
	require.NoError(t, err)
	res = decodeOutput[ScoreOutput](t, out)
	assert.Equal(t, []string{"Single income source supports the household"}, res.Reasons)
	assert.Equal(t, []string{
		"Diversify income sources - consider secondary income streams",
		"Add a secondary income source",
	}, res.Recommendations)

	out, err = runApp(t, dir, singleEarnerJSON, "score", "--file", "-")
	require.NoError(t, err)
	assert.Equal(t, res.FragilityScore, decodeOutput[ScoreOutput](t, out).FragilityScore)

	out, err = runApp(t, dir, "", "data", "analyses")
	require.NoError(t, err)
	list := decodeOutput[[]*data.Analysis](t, out)
	require.Len(t, list, 3)
	assert.Equal(t, sourceCLI, list[0].Source)
	assert.Equal(t, "formula", list[0].Model)
}

func TestScore_Batch(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "batch.json", `{"instances": [`+singleEarnerJSON+`, {"members": [], "supports": []}]}`)

	out, err := runApp(t, dir, "", "score", "--file", path)
	require.NoError(t, err)
	res := decodeOutput[map[string][]ScoreOutput](t, out)
	require.Len(t, res["predictions"], 2)
	assert.Equal(t, 1, res["predictions"][0].Features.SinglePointFailure)
}

func TestScore_TrainedModel(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.yaml")
	m, _, err := model.Train(synth.NewGenerator(1).Generate(500), model.TrainOptions{})
	require.NoError(t, err)
	require.NoError(t, m.Save(modelPath))
	t.Setenv(config.EnvModelPath, modelPath)

	path := writeFile(t, dir, "household.json", singleEarnerJSON)
	_, err = runApp(t, dir, "", "score", "--file", path)
	require.NoError(t, err)

	out, err := runApp(t, dir, "", "data", "analyses", "--limit", "1")
	require.NoError(t, err)
	list := decodeOutput[[]*data.Analysis](t, out)
	require.Len(t, list, 1)
	assert.Equal(t, "linear", list[0].Model)
}

func TestScore_Errors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := runApp(t, dir, "", "score")
	assert.Error(t, err)

	_, err = runApp(t, dir, "", "score", "--file", filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := writeFile(t, dir, "bad.json", "{")
	_, err = runApp(t, dir, "", "score", "--file", bad)
	assert.Error(t, err)
}

func TestSimulate(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "household.json", singleEarnerJSON)

	out, err := runApp(t, dir, "", "simulate", "--file", path, "--member", "e")
	require.NoError(t, err)
	sim := decodeOutput[score.Simulation](t, out)
	assert.Equal(t, 1.0, sim.After)
	assert.Equal(t, score.ImpactSevere, sim.Impact)

	_, err = runApp(t, dir, "", "simulate", "--file", path, "--member", "x")
	assert.ErrorIs(t, err, score.ErrMemberNotFound)

	_, err = runApp(t, dir, "", "simulate", "--file", path, "--member", "e", "--shock", "meteor")
	assert.ErrorIs(t, err, household.ErrUnknownShock)

	out, err = runApp(t, dir, "", "simulate", "--file", path, "--member", "e", "--shock", household.ShockJobLoss)
	require.NoError(t, err)
	sim = decodeOutput[score.Simulation](t, out)
	assert.Equal(t, household.ShockJobLoss, sim.Details.ShockType)
	assert.Equal(t, sim.Before, sim.After)

	batch := writeFile(t, dir, "batch.json", `{"instances": [`+singleEarnerJSON+`]}`)
	_, err = runApp(t, dir, "", "simulate", "--file", batch, "--member", "e")
	assert.Error(t, err)
}

func TestLoan(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "household.json", `{
		"members": [
			{"id": "e", "role": "earner", "income_stability": 0.2, "is_applicant": true},
			{"id": "a"}, {"id": "b"}, {"id": "c"}
		],
		"supports": [{"from": "e", "to": "a"}, {"from": "a", "to": "b"}, {"from": "b", "to": "c"}]
	}`)

	out, err := runApp(t, dir, "", "loan", "--file", path)
	require.NoError(t, err)
	e := decodeOutput[score.LoanEvaluation](t, out)
	assert.Equal(t, "e", e.ApplicantID)
	assert.Equal(t, risk.High, e.LoanRisk)
	assert.True(t, e.ChainAnalysis.HasChainRisk)
	assert.Equal(t, 4, e.ChainAnalysis.MaxChainDepth)
	assert.Contains(t, e.Suggestions, "Member e has 4-level dependency chain - monitor closely")

	batch := writeFile(t, dir, "batch.json", `{"instances": [`+singleEarnerJSON+`]}`)
	_, err = runApp(t, dir, "", "loan", "--file", batch)
	assert.Error(t, err)
}

func TestFormatYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "household.json", singleEarnerJSON)

	out, err := runApp(t, dir, "", "--format", "yaml", "score", "--file", path)
	require.NoError(t, err)

	var res map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &res))
	assert.Contains(t, res, "fragilityScore")
	assert.Contains(t, res, "riskBand")
}

func TestReset(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := runApp(t, dir, "", "generate", "--rows", "5", "--out", "", "--save")
	require.NoError(t, err)

	out, err := runApp(t, dir, "n\n", "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Aborted.")

	out, err = runApp(t, dir, "", "data", "datasets")
	require.NoError(t, err)
	assert.Len(t, decodeOutput[[]*data.Dataset](t, out), 1)

	out, err = runApp(t, dir, "", "reset", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Reset complete.")

	out, err = runApp(t, dir, "", "data", "datasets")
	require.NoError(t, err)
	assert.Empty(t, decodeOutput[[]*data.Dataset](t, out))
}

func TestReset_Postgres(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvStoreDSN, "postgres://localhost/fragility")
	_, err := runApp(t, t.TempDir(), "", "reset", "--yes")
	assert.Error(t, err)
}

func TestAuth(t *testing.T) {
	clearEnv(t)
	keyring.MockInit()
	dir := t.TempDir()

	_, err := runApp(t, dir, "", "auth")
	assert.Error(t, err)

	out, err := runApp(t, dir, "", "auth", "--token", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Token saved")

	cfg := &appConfig{Dir: dir}
	token, err := cfg.tokenStore().Get()
	require.NoError(t, err)
	assert.Equal(t, "secret", token)

	_, err = runApp(t, dir, "", "auth", "--delete")
	require.NoError(t, err)
	_, err = cfg.tokenStore().Get()
	assert.Error(t, err)
}

func TestEncode(t *testing.T) {
	v := map[string]int{"a": 1}

	var buf bytes.Buffer
	require.NoError(t, encode(&buf, formatJSON, v))
	assert.JSONEq(t, `{"a": 1}`, buf.String())

	buf.Reset()
	require.NoError(t, encode(&buf, formatYAML, v))
	assert.Equal(t, "a: 1\n", buf.String())
}
