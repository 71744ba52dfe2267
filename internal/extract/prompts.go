package extract

const entitiesPrompt = "You extract bank statement data for a ledger importer.\n\n" +
	"Task:\n" +
	"- Read the attached PDF statement.\n" +
	"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
	"- Output ONE JSON object with this shape:\n" +
	"  {\"documentType\": string, \"entities\": [entity, ...]}\n" +
	"  entity = {\"type\": string, \"mentionText\": string, \"confidence\": number between 0 and 1, \"properties\": [entity, ...]}\n\n" +
	"Statement-level entities (top level, no properties):\n" +
	"- \"account_number\", \"bank_name\", \"statement_start_date\", \"statement_end_date\", \"ending_balance\"\n\n" +
	"Transaction rows:\n" +
	"- One top-level entity of type \"table_item\" per statement line, with properties:\n" +
	"  \"transaction_date\", \"description\", \"payee\", \"transaction_amount\", \"debit_credit\" (\"debit\" or \"credit\"), \"running_balance\"\n" +
	"- Copy text exactly as printed. Do not reformat dates or amounts.\n" +
	"- Omit properties that are not printed on the line.\n\n" +
	"Set \"documentType\" to \"bank_statement\", \"credit_card_statement\" or \"invoice\".\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Output must begin with \"{\" and end with \"}\".\n"

const textPrompt = "Transcribe the attached PDF bank statement to plain text.\n\n" +
	"Rules:\n" +
	"- Keep the original line order and one statement line per output line.\n" +
	"- Keep section headings such as \"Deposits\" or \"Withdrawals\" on their own lines.\n" +
	"- Copy dates and amounts exactly as printed.\n" +
	"- Do not summarize, translate or add commentary.\n" +
	"- Do NOT use Markdown.\n"
