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
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/hexa/rfqdesk/internal/graph"
)

var (
	// ErrNotSignedIn means no Graph credentials or token are available.
	ErrNotSignedIn = errors.New("not signed in to Microsoft Graph, please sign in")

	// ErrOriginalNotFound means the open message's subject has no entry in
	// the original-message map.
	ErrOriginalNotFound = errors.New("original message not found for this thread")

	// ErrMessageNotFound means a message could not be fetched or located.
	ErrMessageNotFound = errors.New("message not found")

	// ErrNoActiveItem means an action was requested before any message was opened.
	ErrNoActiveItem = errors.New("no message is open")
)

// PermissionError is a Graph 401/403 on a mailbox the app cannot access.
type PermissionError struct {
	Mailbox string
	Err     error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("access to mailbox %s denied (grant Full Access to mailbox %s): %v",
		e.Mailbox, e.Mailbox, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// classifyErr maps a Graph failure on mailbox onto the desk's error taxonomy.
func classifyErr(err error, mailbox string) error {
	if err == nil {
		return nil
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %v", ErrNotSignedIn, err)
	}
	if graph.IsPermission(err) {
		return &PermissionError{Mailbox: mailbox, Err: err}
	}
	if graph.IsNotFound(err) {
		return fmt.Errorf("%w: %v", ErrMessageNotFound, err)
	}
	return err
}
