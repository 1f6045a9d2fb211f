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

package models

import "fmt"

// Category is one of the four mutually exclusive RFQ status labels.
type Category int

const (
	CategoryMissingDetails Category = iota
	CategoryPendingEngineering
	CategoryClarification
	CategoryDetailsComplete
)

// Categories lists the RFQ categories in workflow order.
var Categories = []Category{
	CategoryMissingDetails,
	CategoryPendingEngineering,
	CategoryClarification,
	CategoryDetailsComplete,
}

// String returns the identifier used in config and on the command line.
func (c Category) String() string {
	switch c {
	case CategoryMissingDetails:
		return "MISSING_DETAILS"
	case CategoryPendingEngineering:
		return "PENDING_ENGINEERING"
	case CategoryClarification:
		return "CLARIFICATION"
	case CategoryDetailsComplete:
		return "DETAILS_COMPLETE"
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// DisplayName is the name the category carries in the mailbox.
func (c Category) DisplayName() string {
	switch c {
	case CategoryMissingDetails:
		return "RFQ: Missing Details"
	case CategoryPendingEngineering:
		return "RFQ: Pending Engineering"
	case CategoryClarification:
		return "RFQ: Clarification"
	case CategoryDetailsComplete:
		return "RFQ: Details Complete"
	}
	return c.String()
}

// Color is the Outlook preset color for the category.
func (c Category) Color() string {
	switch c {
	case CategoryMissingDetails:
		return "preset0" // red
	case CategoryPendingEngineering:
		return "preset1" // orange
	case CategoryClarification:
		return "preset3" // yellow
	case CategoryDetailsComplete:
		return "preset4" // green
	}
	return "none"
}

// ParseCategory accepts either the identifier or the display name.
func ParseCategory(name string) (Category, error) {
	for _, c := range Categories {
		if c.String() == name || c.DisplayName() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", name)
}

// IsRFQCategory reports whether a mailbox category name belongs to the RFQ set.
func IsRFQCategory(displayName string) bool {
	for _, c := range Categories {
		if c.DisplayName() == displayName {
			return true
		}
	}
	return false
}
