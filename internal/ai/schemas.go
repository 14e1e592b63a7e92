package ai

import (
	"slices"

	"google.golang.org/genai"
)

func stringSchema() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }

func integerSchema() *genai.Schema { return &genai.Schema{Type: genai.TypeInteger} }

func enumSchema(values ...string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Enum: values}
}

func arraySchema(items *genai.Schema) *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: items}
}

func stringArraySchema() *genai.Schema { return arraySchema(stringSchema()) }

// objectSchema marks every property as required
func objectSchema(properties map[string]*genai.Schema, optional ...string) *genai.Schema {
	required := make([]string, 0, len(properties))
	for name := range properties {
		if !slices.Contains(optional, name) {
			required = append(required, name)
		}
	}
	slices.Sort(required)
	return &genai.Schema{Type: genai.TypeObject, Properties: properties, Required: required}
}

func quizQuestionSchema() *genai.Schema {
	return objectSchema(map[string]*genai.Schema{
		"id":            stringSchema(),
		"question":      stringSchema(),
		"type":          enumSchema("MultipleChoice", "TrueFalse", "ShortAnswer"),
		"options":       stringArraySchema(),
		"correctAnswer": stringSchema(),
	}, "options")
}

func analysisSchema() *genai.Schema {
	return objectSchema(map[string]*genai.Schema{
		"userProfile": objectSchema(map[string]*genai.Schema{
			"name":            stringSchema(),
			"currentRole":     stringSchema(),
			"yearsExperience": integerSchema(),
			"topSkills":       stringArraySchema(),
		}),
		"verdict":            enumSchema("APTO", "NO APTO"),
		"verdictExplanation": stringSchema(),
		"vacancyAnalysis":    stringSchema(),
		"candidateAnalysis":  stringSchema(),
		"comparisonMatrix": arraySchema(objectSchema(map[string]*genai.Schema{
			"criteria":       stringSchema(),
			"requirement":    stringSchema(),
			"candidateMatch": stringSchema(),
			"status":         enumSchema("Match", "Gap", "Partial"),
		})),
		"studyPath": arraySchema(objectSchema(map[string]*genai.Schema{
			"weekNumber":     integerSchema(),
			"title":          stringSchema(),
			"estimatedHours": integerSchema(),
			"theory":         stringSchema(),
			"podcastScript":  stringSchema(),
			"podcastSummary": stringSchema(),
			"resources": arraySchema(objectSchema(map[string]*genai.Schema{
				"title":       stringSchema(),
				"type":        enumSchema("Reading", "Podcast", "Document", "Video"),
				"link":        stringSchema(),
				"description": stringSchema(),
			}, "link")),
			"assessments": arraySchema(objectSchema(map[string]*genai.Schema{
				"title":     stringSchema(),
				"type":      enumSchema("Conceptual", "Practical", "Challenge"),
				"questions": arraySchema(quizQuestionSchema()),
			})),
		})),
		"finalEvaluation": objectSchema(map[string]*genai.Schema{
			"caseStudy":      stringSchema(),
			"questions":      arraySchema(quizQuestionSchema()),
			"feedbackReport": stringSchema(),
		}),
		"tutorInstructions":      stringSchema(),
		"accessibilityStatement": stringSchema(),
	}, "accessibilityStatement")
}

func marketTrendsSchema() *genai.Schema {
	return objectSchema(map[string]*genai.Schema{
		"marketGaps":      stringArraySchema(),
		"growingTech":     stringArraySchema(),
		"decliningTech":   stringArraySchema(),
		"emergingRoles":   stringArraySchema(),
		"recommendations": stringArraySchema(),
	})
}

func salaryNegotiationSchema() *genai.Schema {
	return objectSchema(map[string]*genai.Schema{
		"initialOffer":    stringSchema(),
		"recruiterExcuse": stringSchema(),
		"lowballRisks":    stringArraySchema(),
		"negotiationStrategy": arraySchema(objectSchema(map[string]*genai.Schema{
			"objection":     stringSchema(),
			"counterScript": stringSchema(),
		})),
		"closingTips": stringArraySchema(),
	})
}

func interviewSimulationSchema() *genai.Schema {
	return objectSchema(map[string]*genai.Schema{
		"introduction": stringSchema(),
		"questions": arraySchema(objectSchema(map[string]*genai.Schema{
			"id":       stringSchema(),
			"question": stringSchema(),
			"category": enumSchema("Challenge", "Trick", "Pressure", "Culture"),
			"intent":   stringSchema(),
			"guide":    stringSchema(),
		})),
		"generalTips": stringArraySchema(),
	})
}

func seniorFeedbackSchema() *genai.Schema {
	return objectSchema(map[string]*genai.Schema{
		"realityCheck":         stringSchema(),
		"doingWell":            stringArraySchema(),
		"doingPoorly":          stringArraySchema(),
		"stopDoingImmediately": stringArraySchema(),
		"priorities":           stringArraySchema(),
		"marketTrends":         stringArraySchema(),
		"improvementPlan":      stringArraySchema(),
	})
}

func jobTranslationSchema() *genai.Schema {
	return objectSchema(map[string]*genai.Schema{
		"ambiguities": arraySchema(objectSchema(map[string]*genai.Schema{
			"quote":       stringSchema(),
			"explanation": stringSchema(),
		})),
		"dictionary": arraySchema(objectSchema(map[string]*genai.Schema{
			"jargon":  stringSchema(),
			"reality": stringSchema(),
		})),
		"hiddenSignals": stringArraySchema(),
		"responsibilities": objectSchema(map[string]*genai.Schema{
			"real":  stringArraySchema(),
			"smoke": stringArraySchema(),
		}),
		"honestVersion": stringSchema(),
	})
}

func redFlagsSchema() *genai.Schema {
	return objectSchema(map[string]*genai.Schema{
		"redFlags": arraySchema(objectSchema(map[string]*genai.Schema{
			"title":       stringSchema(),
			"description": stringSchema(),
			"severity":    enumSchema("High", "Medium"),
		})),
		"risks":          stringArraySchema(),
		"questionsToAsk": stringArraySchema(),
		"alternatives":   stringArraySchema(),
	})
}
