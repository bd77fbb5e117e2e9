package services

const (
	analysisPromptHeader = "Analyse ce CV en français de manière concise et claire.\n\nCV : "

	analysisPromptFooter = `

Réponds UNIQUEMENT avec ce format (pas de JSON, texte simple) :

ERREURS :
- [Liste les erreurs importantes]

SUGGESTIONS :
- [3-5 suggestions concrètes]

CV OPTIMISÉ :
[Réécris le CV de façon professionnelle en français]

Sois concis et professionnel.`
)

// Section headers the model is asked to produce, in order.
var AnalysisSections = []string{"ERREURS :", "SUGGESTIONS :", "CV OPTIMISÉ :"}

// BuildAnalysisPrompt embeds the résumé text verbatim in the analysis
// instructions.
func BuildAnalysisPrompt(text string) string {
	return analysisPromptHeader + text + analysisPromptFooter
}
