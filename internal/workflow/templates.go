// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workflow

import (
	"bytes"
	"fmt"
	"text/template"
)

const engineeringReviewBody = `Dear Engineering Team,

A customer RFQ needs technical review before we can quote.

Original subject: {{.OriginalSubject}}
Customer: {{.Customer}}

Key concerns requiring engineering input:

1. Apodization for reduced sidelobe levels: confirm FemtoPlus compatibility and SLSR capability.
2. Operating temperature range -40°C to +85°C: confirm annealing parameters and calibration range.
3. Aerospace certification: verify AS9100D or other compliance.
4. Polyimide coating: confirm max operating temperature and long-term stability.
5. Reflectivity, FWHM tolerance and delivery timeline: not yet specified by the customer.

Please reply to this email so the answer is threaded back to the RFQ.

Best regards,
Sales Team`

const clarificationBody = `Thank you for your RFQ ({{.OriginalSubject}}). We have reviewed your requirements with our engineering team.

ANSWERS TO YOUR QUESTIONS:

1. Apodization: apodized FBGs are standard, minimum SLSR 8 dB.
2. Polyimide coating: suitable for continuous operation from -40°C to +300°C.
3. Annealing: 300°C for 24 hours. Calibration over your temperature range is available.
4. Aerospace certification: AS9100D certification is available on request.

ADDITIONAL INFORMATION NEEDED:

- Required reflectivity percentage.
- Acceptable FWHM tolerance.
- Calibration temperature range, if applicable.
- Required delivery date or lead time.

We look forward to your reply.`

const quoteBody = `Dear Customer,

Thank you for your confirmation. Please find attached:
{{range $i, $f := .Attachments}}
{{inc $i}}. {{$f}}{{end}}

This offer is valid for 30 days.

If you have any further questions, please do not hesitate to contact us.

Best regards`

// TemplateData is what the email bodies are rendered with.
type TemplateData struct {
	OriginalSubject string
	Customer        string
	Attachments     []string
}

// Templates holds the bodies of the three outgoing emails.
type Templates struct {
	EngineeringReview *template.Template
	Clarification     *template.Template
	Quote             *template.Template
}

var funcs = template.FuncMap{"inc": func(i int) int { return i + 1 }}

// DefaultTemplates returns the built-in email bodies.
func DefaultTemplates() *Templates {
	return &Templates{
		EngineeringReview: template.Must(template.New("engineering_review").Parse(engineeringReviewBody)),
		Clarification:     template.Must(template.New("clarification").Parse(clarificationBody)),
		Quote:             template.Must(template.New("quote").Funcs(funcs).Parse(quoteBody)),
	}
}

func render(t *template.Template, data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
