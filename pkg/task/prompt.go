package task

import (
	"strings"

	"github.com/zen-systems/ecoscan/pkg/product"
)

const (
	tipPrompt  = "Give a one-sentence clever and actionable eco-friendly shopping tip. No markdown."
	defaultTip = "Shop local to reduce carbon footprint."
)

// AnalysisPrompt builds the product analysis prompt.
func AnalysisPrompt(p product.Product) string {
	var sb strings.Builder

	sb.WriteString("Analyze this food product:\n")
	sb.WriteString("Name: " + p.Name + "\n")
	sb.WriteString("Brand: " + p.Brand + "\n")
	sb.WriteString("Ingredients: " + strings.Join(p.Ingredients, ", ") + "\n")
	if p.HealthGrade != "" || p.EcoGrade != "" {
		sb.WriteString("Nutri-Score: " + p.HealthGrade + ", Eco-Score: " + p.EcoGrade + "\n")
	}

	sb.WriteString("\nReturn a JSON object with healthInsight, sustainabilityInsight, ")
	sb.WriteString("healthScore (0-100), ecoScore (0-100), an optional alternative {name, reason} ")
	sb.WriteString("and optional concerningIngredients [{name, reason}].\n")
	sb.WriteString("Rules: No markdown, no asterisks, professional tone.")

	return sb.String()
}

// ChatSystem builds the assistant's system instruction. viewing describes
// the product currently on screen and may be empty.
func ChatSystem(viewing string) string {
	var sb strings.Builder
	sb.WriteString("You are Eco-Assistant. Concise (2 sentences max). No markdown. Actionable advice.")
	if viewing = strings.TrimSpace(viewing); viewing != "" {
		sb.WriteString(" Context: ")
		sb.WriteString(viewing)
	}
	return sb.String()
}

// ProductContext summarizes a product for use as chat context.
func ProductContext(p product.Product) string {
	var sb strings.Builder
	sb.WriteString("The user is viewing " + p.Name + " by " + p.Brand + ".")
	if p.HealthGrade != "" {
		sb.WriteString(" Nutri-Score " + p.HealthGrade + ".")
	}
	if p.EcoGrade != "" {
		sb.WriteString(" Eco-Score " + p.EcoGrade + ".")
	}
	return sb.String()
}
