package descriptions

// Comprehensive tool descriptions with practical examples and use cases

const (
	// Core Pipeline Tools
	FormDetectFieldsDescription = `Detect fillable fields in a form document and classify each one.

**When to use:** Starting work with a new form, building a review UI, or deciding what data a document asks for before filling it.

**Why it's useful:** Combines native PDF text, AcroForm widgets, and image recognition into one labeled field list with types, positions, and confidence scores.

**Examples:**
• New intake form: "Detect fields in patient-intake.pdf to see what information it collects"
• Scanned paperwork: "Find the fields on this photographed enrollment form"
• Form audit: "List every required field in benefits-application.pdf"

**Common workflows:**
1. Review Before Fill: Detect fields → Show labels to user → Collect missing values → Fill
2. Form Inventory: Detect fields → Catalog keys and types → Compare across form versions
3. Scanned Intake: Detect fields on image → Verify low-confidence labels → Proceed to autofill

**Best practices:** Check each field's confidence before trusting its label, low scores usually mean blurry scans or unusual layouts.`

	FormAutofillDescription = `Match detected fields against a user profile and propose a value for each.

**When to use:** Fields are already detected and you want value suggestions from stored profile data without touching the document yet.

**Why it's useful:** Resolves fields through exact, synonym, and fuzzy profile matching plus date and household rules, so users only type what the profile lacks.

**Examples:**
• Pre-fill review: "Autofill school-registration.pdf fields from user u-42's profile for approval"
• Family forms: "Fill camp-waiver.pdf using the household member entry for the child"
• Gap analysis: "See which fields of tax-form.pdf the stored profile cannot answer"

**Common workflows:**
1. Human in the Loop: Detect fields → Autofill → User edits mappings → Render
2. Household Filling: Autofill with household_member_id → Verify relationship fields → Render
3. Profile Growth: Autofill → Collect unmatched values from user → Save back to profile

**Best practices:** Unresolved mappings come back with empty values rather than guesses, surface those to the user instead of skipping them.`

	FormRenderDescription = `Draw resolved field values onto the document and return the filled result.

**When to use:** Field mappings are final, whether from autofill, user edits, or both, and you need the completed document bytes.

**Why it's useful:** Places text at each field's exact coordinates with checkbox marks and signature image support, producing a PDF ready to print or submit.

**Examples:**
• Final output: "Render the approved mappings onto consent-form.pdf"
• Signature stamping: "Render waiver.pdf including the user's signature image in the signature field"
• Image forms: "Render values onto the photographed form and return a PDF"

**Common workflows:**
1. Approved Fill: Detect → Autofill → User approves → Render → Deliver PDF
2. Re-render Loop: Render → User spots a wrong value → Edit mapping → Render again
3. Sign and Send: Render with signature_image → Validate output → Submit downstream

**Best practices:** Only mappings with non-empty values are drawn, the skipped count in the result tells you how many fields stayed blank.`

	FormProcessDescription = `Run the full pipeline in one call, from raw document to filled output.

**When to use:** Unattended filling where no human review happens between detection and rendering, or quick one-shot form completion.

**Why it's useful:** Chains detection, classification, profile resolution, and rendering in a single operation and returns the filled document together with every intermediate mapping.

**Examples:**
• One-shot fill: "Process insurance-claim.pdf with user u-42's profile and return the filled PDF"
• Batch jobs: "Process each onboarding form in the queue overnight"
• Quick turnaround: "Fill and return this scanned permission slip in one step"

**Common workflows:**
1. Unattended Fill: Process → Check resolved count → Flag documents with many empty fields
2. Batch Processing: Process each document → Collect results → Report failures per document
3. Fill Then Audit: Process → Review returned mappings → Re-render corrections if needed

**Best practices:** Inspect the returned mappings even on success, a low resolved count means the profile was missing data the form asked for.`

	// Utility Tools
	FormServerInfoDescription = `Get server status, configured limits, and the catalog of available tools.

**When to use:** Starting a session, troubleshooting unexpected rejections, or discovering what the server can do.

**Why it's useful:** Reports the active file size limit, recognition mode, classifier model, and supported document types so you can diagnose failures without guesswork.

**Examples:**
• Session start: "Check server info to confirm recognition is available before sending scans"
• Size rejections: "See the configured max file size after an upload was refused"
• Capability discovery: "List all form tools and their parameters for a new integration"

**Common workflows:**
1. Session Startup: Check server info → Verify limits and modes → Plan document batches
2. Debugging: Review configuration → Compare against failing request → Adjust inputs
3. Integration: Read tool catalog → Map tools to application features → Build client calls

**Best practices:** Run once per session, the reported limits reflect live configuration rather than documentation defaults.`
)

// ToolDescriptions maps tool names to their comprehensive descriptions
var ToolDescriptions = map[string]string{
	"form_detect_fields": FormDetectFieldsDescription,
	"form_autofill":      FormAutofillDescription,
	"form_render":        FormRenderDescription,
	"form_process":       FormProcessDescription,
	"form_server_info":   FormServerInfoDescription,
}

// GetToolDescription returns the comprehensive description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns a list of all available tool names
func GetAllToolNames() []string {
	var names []string
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	return names
}
