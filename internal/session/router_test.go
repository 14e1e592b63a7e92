package session

import (
	"testing"

	"postulamatch/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveView(t *testing.T) {
	upload := New("s1", t0)
	assert.Equal(t, View{Name: ViewUpload}, ResolveView(upload))

	analyzing, err := BeginAnalysis(upload, resume(), job(), t0)
	require.NoError(t, err)
	assert.Equal(t, View{Name: ViewAnalyzing, LoadingText: "loading.analysis"}, ResolveView(analyzing))

	results := analyzedState(t)
	v := ResolveView(results)
	assert.Equal(t, ViewResults, v.Name)
	assert.Equal(t, TabAnalysis, v.Tab)
	assert.Empty(t, v.Report)
	assert.True(t, v.HomeEnabled)
	assert.False(t, v.ChatVisible)

	assert.True(t, ResolveView(ToggleChat(results, t0)).ChatVisible)

	quizzing, err := StartFinalExam(results, t0)
	require.NoError(t, err)
	assert.Equal(t, ViewQuiz, ResolveView(quizzing).Name)
}

func TestResolveViewReportTabs(t *testing.T) {
	s := analyzedState(t)
	s, err := SelectTab(s, TabMarket, t0)
	require.NoError(t, err)

	v := ResolveView(s)
	assert.Equal(t, ReportMarket, v.Report)
	assert.Equal(t, StatusNotStarted, v.Status)
	assert.Empty(t, v.LoadingText)

	s, _, err = BeginReport(s, ReportMarket, t0)
	require.NoError(t, err)
	v = ResolveView(s)
	assert.Equal(t, StatusLoading, v.Status)
	assert.Equal(t, "loading.market", v.LoadingText)

	s, err = ReportSucceeded(s, ReportMarket, s.Epoch, &types.MarketTrends{GrowingTech: []string{"Rust"}}, t0)
	require.NoError(t, err)
	v = ResolveView(s)
	assert.Equal(t, StatusLoaded, v.Status)
	assert.Empty(t, v.LoadingText)
}

func TestReportForTab(t *testing.T) {
	want := map[Tab]ReportKind{
		TabMarket:    ReportMarket,
		TabInterview: ReportInterview,
		TabSenior:    ReportSenior,
		TabDecoder:   ReportDecoder,
	}
	for _, tab := range Tabs {
		kind, ok := ReportForTab(tab)
		expected, has := want[tab]
		assert.Equal(t, has, ok, tab)
		assert.Equal(t, expected, kind, tab)
	}
}

func TestParse(t *testing.T) {
	tab, err := ParseTab("decoder")
	require.NoError(t, err)
	assert.Equal(t, TabDecoder, tab)
	_, err = ParseTab("Decoder")
	assert.Error(t, err)

	kind, err := ParseReportKind("salary")
	require.NoError(t, err)
	assert.Equal(t, ReportSalary, kind)
	assert.Equal(t, "notice.salary_failed", kind.FailureNotice())
	assert.Equal(t, "loading.salary", kind.LoadingText())
	_, err = ParseReportKind("")
	assert.Error(t, err)
}
