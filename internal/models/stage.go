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

// Stage is the workflow stage an open message represents.
type Stage int

const (
	StageNeutral Stage = iota
	StageInitialRFQ
	StageEngineeringReply
	StageCustomerReplyWithDetails
)

// Stages lists every stage in declaration order.
var Stages = []Stage{
	StageNeutral,
	StageInitialRFQ,
	StageEngineeringReply,
	StageCustomerReplyWithDetails,
}

func (s Stage) String() string {
	switch s {
	case StageNeutral:
		return "neutral"
	case StageInitialRFQ:
		return "initial_rfq"
	case StageEngineeringReply:
		return "engineering_reply"
	case StageCustomerReplyWithDetails:
		return "customer_reply_with_details"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// MarshalText encodes the stage by name so events and logs carry readable values.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseStage is the inverse of Stage.String.
func ParseStage(name string) (Stage, error) {
	for _, s := range Stages {
		if s.String() == name {
			return s, nil
		}
	}
	return StageNeutral, fmt.Errorf("unknown stage %q", name)
}
