// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
)

const (
	serveCmdUsage = "serve"
	serveCmdShort = "start the SOAP signing service"
	serveCmdLong  = `Start the SOAP signing service.
	The service exposes two endpoints receiving SOAP envelopes:
	- POST /soap/sign: returns the envelope signed with the configured key
	- POST /soap/validate: verifies the signature of the envelope

	Every request is written in the audit log. The server listens on HTTP_HOST and
	HTTP_PORT and stops on SIGINT or SIGTERM.`

	serveCmdExample = `# Start the service reading the keystore from a configuration file
	logkit serve --crypto-config crypto.yaml`

	signCmdUsage = "sign [FILE|-]"
	signCmdShort = "sign a SOAP envelope"
	signCmdLong  = `Sign a SOAP envelope.
	The Timestamp of the security header, when present, and the Body of the envelope
	are signed and the result is printed on standard output. Without arguments or with
	'-' the envelope is read from standard input.`

	signCmdExample = `# Sign an envelope with a specific key
	logkit sign request.xml --crypto-config crypto.yaml --key-alias signer`

	validateCmdUsage = "validate [FILE|-]"
	validateCmdShort = "validate the signature of a SOAP envelope"
	validateCmdLong  = `Validate the signature of a SOAP envelope.
	Without arguments or with '-' the envelope is read from standard input.`

	validateCmdExample = `# Validate a signed envelope read from standard input
	logkit sign request.xml -c crypto.yaml | logkit validate -c crypto.yaml`
)

// ServeCmd returns the Cobra command that starts the HTTP service.
func ServeCmd() *cobra.Command {
	flags := &flags{}
	cmd := &cobra.Command{
		Use:     serveCmdUsage,
		Short:   heredoc.Doc(serveCmdShort),
		Long:    heredoc.Doc(serveCmdLong),
		Example: heredoc.Doc(serveCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		Args:              cobra.NoArgs,
		ValidArgsFunction: cobra.NoFileCompletions,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.toOptions(cmd, args)
			if err != nil {
				return handleError(cmd, err)
			}

			if err := opts.executeServe(cmd.Context()); err != nil {
				return handleError(cmd, err)
			}

			return nil
		},
	}

	flags.addFlags(cmd)
	return cmd
}

// SignCmd returns the Cobra command that signs a single envelope.
func SignCmd() *cobra.Command {
	flags := &flags{}
	cmd := &cobra.Command{
		Use:     signCmdUsage,
		Short:   heredoc.Doc(signCmdShort),
		Long:    heredoc.Doc(signCmdLong),
		Example: heredoc.Doc(signCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.toOptions(cmd, args)
			if err != nil {
				return handleError(cmd, err)
			}

			if err := opts.executeSign(cmd.Context()); err != nil {
				return handleError(cmd, err)
			}

			return nil
		},
	}

	flags.addFlags(cmd)
	return cmd
}

// ValidateCmd returns the Cobra command that validates a single envelope.
func ValidateCmd() *cobra.Command {
	flags := &flags{}
	cmd := &cobra.Command{
		Use:     validateCmdUsage,
		Short:   heredoc.Doc(validateCmdShort),
		Long:    heredoc.Doc(validateCmdLong),
		Example: heredoc.Doc(validateCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.toOptions(cmd, args)
			if err != nil {
				return handleError(cmd, err)
			}

			if err := opts.executeValidate(cmd.Context()); err != nil {
				return handleError(cmd, err)
			}

			return nil
		},
	}

	flags.addFlags(cmd)
	return cmd
}
