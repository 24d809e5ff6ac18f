package pipeline

import (
	"bytes"
	"strings"
	"text/template"
)

// renameInstructions is the system prompt for the column rename tool call.
const renameInstructions = `Please correct and humanize the following column names to make them more readable by:
1. Make it more human readable.
2. Separating words with underscores.
3. Capitalizing the first letter of each word.

For eg. airlie_id to Airline_ID, flght# to Flight_Number

Return exactly one corrected name per input name, in the same order, by calling the correct_column_names tool.
If you cannot call the tool, answer with a JSON object {"corrected_columns": [...]} and nothing else.`

// renameRequest lists the current columns for the rename call.
func renameRequest(columns []string) string {
	return "Please correct and humanize the following column names: " + strings.Join(columns, ", ")
}

var missingNegativeTmpl = template.Must(template.New("missing").Parse(`Given the following column names of a table:
{{.Columns}}

With these column types:
{{.Types}}

And the following sample data:
{{.Sample}}
Analyze potential data issues focusing solely on:
1. Missing values in numerical columns.
2. Negative values in numerical columns.

Generate code to fix these issues. The code should handle:
- Imputing or removing missing values in numerical columns.
- Correcting or removing negative values in numerical columns where negative values are not logically valid.

{{.DSL}}

The code should define a function named ` + "`clean_flight_data`" + ` that takes the table as input and applies all necessary cleaning steps.
Only return the code, inside a single ` + "```python" + ` fenced block, with the function being called with the parameter ` + "`df`" + ` and the line ` + "`cleaned_df = clean_flight_data(df)`" + ` at the end, nothing else.
Don't give example usage.
`))

var inconsistencyTmpl = template.Must(template.New("inconsistency").Parse(`Given the following column names of a table:
{{.Columns}}

With these column types:
{{.Types}}

And the following sample data:
{{.Sample}}
Analyze potential data issues and inconsistencies in the dataset, focusing on:
1. Missing values in numerical and date/time columns.
2. Negative values in numerical columns where such values are not logically valid.
3. Date and time inconsistencies, such as:
    - 'Arrival Date' being before 'Departure Date'.
    - 'Departure Time' being after 'Arrival Time' on the same day.
4. Data type mismatches based on column names and sample data.
5. Logical errors specific to the context of the dataset (e.g., invalid flight numbers).

Generate code to fix these issues. The code should handle:
- Imputing or removing missing values in numerical and date/time columns.
- Correcting or removing negative values in numerical columns.
- Ensuring that 'Arrival Date' is not before 'Departure Date'.
- Ensuring that 'Departure Time' is not after 'Arrival Time' when dates are the same.
- Correcting data type mismatches and any other logical inconsistencies based on the columns present.

{{.DSL}}

The code should:
- Define a function named ` + "`clean_flight_data`" + ` that takes the table as input and applies all necessary cleaning steps.
- Automatically identify the relevant columns based on their names and data types.
- Handle various data issues dynamically without hardcoding column names, except for those explicitly mentioned.
- Ensure that the cleaned table maintains data integrity and logical consistency.

Only return the code, inside a single ` + "```python" + ` fenced block, with the function being defined and called with the parameter ` + "`df`" + ` and the line ` + "`cleaned_df = clean_flight_data(df)`" + ` at the end. Do not include any explanations or additional text.
Don't give example usage.
`))

type repairPromptData struct {
	Columns string
	Types   string
	Sample  string
	DSL     string
}

func renderPrompt(tmpl *template.Template, data repairPromptData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
