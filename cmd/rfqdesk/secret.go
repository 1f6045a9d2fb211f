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

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hexa/rfqdesk/internal/config"
	"github.com/hexa/rfqdesk/internal/credential"
	"github.com/hexa/rfqdesk/internal/status"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage the Graph client secret in the OS keyring",
}

var secretSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the client secret for graph.client_id (read from stdin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		store, clientID, err := openSecretStore()
		if err != nil {
			status.Err(out, err)
			return err
		}

		fmt.Fprint(cmd.ErrOrStderr(), "client secret: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		secret := strings.TrimSpace(line)
		if secret == "" {
			err = fmt.Errorf("no secret read from stdin: %v", err)
			status.Err(out, err)
			return err
		}

		if err := store.Set(credential.ClientSecretKey(clientID), secret); err != nil {
			status.Err(out, err)
			return err
		}
		status.Fprint(out, status.Success, "client secret stored", clientID)
		return nil
	},
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored client secret for graph.client_id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		store, clientID, err := openSecretStore()
		if err != nil {
			status.Err(out, err)
			return err
		}
		if err := store.Delete(credential.ClientSecretKey(clientID)); err != nil {
			status.Err(out, err)
			return err
		}
		status.Fprint(out, status.Success, "client secret removed", clientID)
		return nil
	},
}

// openSecretStore opens the keyring for the configured client id. Only
// graph.client_id is needed, so the rest of the config is not validated.
func openSecretStore() (*credential.Store, string, error) {
	var clientID string
	if cfg, err := config.Load(configPath); err == nil {
		clientID = cfg.Graph.ClientID
	} else {
		clientID = os.Getenv("AZURE_CLIENT_ID")
	}
	if clientID == "" {
		return nil, "", fmt.Errorf("graph.client_id is not configured")
	}

	store, err := credential.Open()
	if err != nil {
		return nil, "", err
	}
	return store, clientID, nil
}

func init() {
	secretCmd.AddCommand(secretSetCmd, secretDeleteCmd)
	rootCmd.AddCommand(secretCmd)
}
