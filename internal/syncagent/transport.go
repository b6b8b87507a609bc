package syncagent

import (
	"fmt"
	"strings"

	"github.com/temirov/catalogsync/internal/gitrepo"
)

const (
	gitTerminalPromptEnvironmentNameConstant    = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptEnvironmentDisableConstant = "0"
	gitSSHCommandEnvironmentNameConstant        = "GIT_SSH_COMMAND"
	sshCommandTemplateConstant                  = "ssh -i %s -F /dev/null -o BatchMode=yes -o StrictHostKeyChecking=accept-new"
	shellSingleQuoteConstant                    = "'"
	shellEscapedSingleQuoteConstant             = `'\''`
)

// transportEnvironment returns the environment every git invocation runs with.
// Prompts are always disabled; ssh remotes authenticate with the configured key
// only, ignoring the user's ssh configuration.
func transportEnvironment(remote gitrepo.RemoteURL, sshKeyPath string) map[string]string {
	environment := map[string]string{
		gitTerminalPromptEnvironmentNameConstant: gitTerminalPromptEnvironmentDisableConstant,
	}
	if command, required := sshCommand(remote, sshKeyPath); required {
		environment[gitSSHCommandEnvironmentNameConstant] = command
	}
	return environment
}

func sshCommand(remote gitrepo.RemoteURL, sshKeyPath string) (string, bool) {
	if !remote.RequiresSSHKey() || len(strings.TrimSpace(sshKeyPath)) == 0 {
		return "", false
	}
	return fmt.Sprintf(sshCommandTemplateConstant, shellQuote(sshKeyPath)), true
}

func shellQuote(value string) string {
	return shellSingleQuoteConstant + strings.ReplaceAll(value, shellSingleQuoteConstant, shellEscapedSingleQuoteConstant) + shellSingleQuoteConstant
}
