package session

// ViewName identifies the screen a session should render
type ViewName string

const (
	ViewUpload    ViewName = "upload"
	ViewAnalyzing ViewName = "analyzing"
	ViewResults   ViewName = "results"
	ViewQuiz      ViewName = "quiz"
)

// View is the resolved screen for a state. LoadingText is an i18n message ID
// and is empty when nothing is loading on screen.
type View struct {
	Name        ViewName     `json:"name"`
	Tab         Tab          `json:"tab,omitempty"`
	Report      ReportKind   `json:"report,omitempty"`
	Status      ReportStatus `json:"status,omitempty"`
	LoadingText string       `json:"loadingText,omitempty"`
	ChatVisible bool         `json:"chatVisible"`
	HomeEnabled bool         `json:"homeEnabled"`
}

// ResolveView maps a state to exactly one screen
func ResolveView(s State) View {
	switch s.Mode() {
	case ModeAnalyzing:
		return View{Name: ViewAnalyzing, LoadingText: "loading.analysis"}
	case ModeQuiz:
		return View{Name: ViewQuiz, Tab: s.Tab, HomeEnabled: true}
	case ModeResults:
		v := View{
			Name:        ViewResults,
			Tab:         s.Tab,
			ChatVisible: s.Chat.Ready && s.Chat.Open,
			HomeEnabled: true,
		}
		if kind, ok := ReportForTab(s.Tab); ok {
			v.Report = kind
			v.Status = s.Reports.Status(kind)
			if v.Status == StatusLoading {
				v.LoadingText = kind.LoadingText()
			}
		}
		return v
	default:
		return View{Name: ViewUpload}
	}
}
