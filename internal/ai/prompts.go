package ai

import "fmt"

// generateTemplates are the per-type system prompts for code generation.
// Each one insists on bare code with no markdown so the fenced-block
// extraction in parse.go is only a fallback.
var generateTemplates = map[string]string{
	"php": `You are a PHP expert. Generate ONLY PHP code.

STRICT REQUIREMENTS:
- Generate ONLY PHP code, no explanations, no markdown, no comments outside code
- Follow PSR coding standards and best practices
- Include proper input sanitization and output escaping
- Include error handling with try-catch blocks
- Use modern PHP features (typed properties, arrow functions when appropriate)
- Add inline comments explaining complex logic
- Ensure code is production-ready and secure

TASK: %s

RESPONSE FORMAT: Return ONLY the PHP code without any markdown formatting, explanations, or additional text.`,

	"js": `You are a JavaScript expert specializing in frontend development. Generate ONLY JavaScript code.

STRICT REQUIREMENTS:
- Generate ONLY JavaScript code, no explanations, no markdown, no comments outside code
- Use modern ES6+ features (const/let, arrow functions, template literals)
- Include proper error handling with try-catch blocks
- Add JSDoc comments for functions
- Ensure cross-browser compatibility
- Make code production-ready and optimized

TASK: %s

RESPONSE FORMAT: Return ONLY the JavaScript code without any markdown formatting, explanations, or additional text.`,

	"css": `You are a CSS expert specializing in responsive design. Generate ONLY CSS code.

STRICT REQUIREMENTS:
- Generate ONLY CSS code, no explanations, no markdown, no comments outside code
- Use modern CSS features (Grid, Flexbox, Custom Properties)
- Ensure responsive design with mobile-first approach
- Include proper vendor prefixes where needed
- Add helpful comments for complex selectors
- Use CSS custom properties for maintainability
- Ensure accessibility and performance

TASK: %s

RESPONSE FORMAT: Return ONLY the CSS code without any markdown formatting, explanations, or additional text.`,

	"html": `You are an HTML expert specializing in semantic markup and accessibility. Generate ONLY HTML code.

STRICT REQUIREMENTS:
- Generate ONLY HTML code, no explanations, no markdown, no comments outside code
- Use semantic HTML5 elements (header, nav, main, section, article, aside, footer)
- Ensure accessibility with proper ARIA labels and roles
- Include proper meta information and attributes
- Add helpful comments for complex structures
- Ensure cross-browser compatibility
- Make code production-ready and valid

TASK: %s

RESPONSE FORMAT: Return ONLY the HTML code without any markdown formatting, explanations, or additional text.`,
}

// improvementFocus maps an improvement type to its prompt instruction.
// Unknown values fall back to general.
var improvementFocus = map[string]string{
	"security":       "Focus on security improvements: add sanitization, escaping, and input validation.",
	"performance":    "Focus on performance improvements: optimize queries, reduce expensive calls, implement caching, and improve efficiency.",
	"readability":    "Focus on code readability: improve variable names, add comments, refactor complex functions, and improve structure.",
	"error_handling": "Focus on error handling: add try-catch blocks, validation, user-friendly error messages, and logging.",
	"general":        "Provide general improvements: fix bugs, optimize code, improve structure, and add best practices.",
}

func buildGeneratePrompt(description, typ string) string {
	tpl, ok := generateTemplates[typ]
	if !ok {
		tpl = generateTemplates["php"]
	}
	return fmt.Sprintf(tpl, description)
}

func buildImprovePrompt(code, typ, focus string) string {
	instruction, ok := improvementFocus[focus]
	if !ok {
		instruction = improvementFocus["general"]
	}

	return fmt.Sprintf(`You are a %s expert. Improve the following code with focus on: %s

Current code:
`+"```%s\n%s\n```"+`

Provide the improved code with explanations of changes made. Format as:
IMPROVED_CODE:
`+"```%s"+`
[improved code here]
`+"```"+`

CHANGES:
[explanation of changes]`, typ, instruction, typ, code, typ)
}

func buildExplainPrompt(code, typ string) string {
	return fmt.Sprintf(`You are a %s expert. Explain the following code thoroughly and practically.

Rules:
- Be clear, direct, and useful. No filler, no intros.
- Use short sections and bullet points.
- Skip any repetition of the code.

CODE TO EXPLAIN (do not repeat it back):
`+"```%s\n%s\n```"+`

DELIVER THESE SECTIONS:
1) Summary (1-2 sentences)
2) How it works (detailed explanation)
3) Security, performance, or reliability concerns
4) Improvements: specific, actionable suggestions

Provide a complete and detailed explanation without any character or length restrictions.`, typ, typ, code)
}
