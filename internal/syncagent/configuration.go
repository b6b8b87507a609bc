package syncagent

import (
	"strings"
	"time"
)

const (
	defaultBranchConstant         = "master"
	defaultSSHKeyPathConstant     = "~/.ssh/id_rsa"
	defaultCloneDirectoryConstant = ".tmpGit"
	defaultPollIntervalConstant   = 10 * time.Second
	defaultCommitMessageConstant  = "Commit auto"
	defaultAuthorNameConstant     = "catalog-sync"
	defaultAuthorEmailConstant    = "catalog-sync@localhost"

	repositoryURLKeyConstant          = "repository_url"
	branchKeyConstant                 = "branch"
	sshKeyPathKeyConstant             = "ssh_key_path"
	cloneDirectoryKeyConstant         = "clone_directory"
	pollIntervalKeyConstant           = "poll_interval"
	commitMessageKeyConstant          = "commit_message"
	authorNameKeyConstant             = "author_name"
	authorEmailKeyConstant            = "author_email"
	configurationKeySeparatorConstant = "."
)

// Configuration describes the remote repository and the working clone.
type Configuration struct {
	RepositoryURL  string        `mapstructure:"repository_url"`
	Branch         string        `mapstructure:"branch"`
	SSHKeyPath     string        `mapstructure:"ssh_key_path"`
	CloneDirectory string        `mapstructure:"clone_directory"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	CommitMessage  string        `mapstructure:"commit_message"`
	AuthorName     string        `mapstructure:"author_name"`
	AuthorEmail    string        `mapstructure:"author_email"`
}

// DefaultConfiguration returns the built-in defaults.
func DefaultConfiguration() Configuration {
	return Configuration{
		Branch:         defaultBranchConstant,
		SSHKeyPath:     defaultSSHKeyPathConstant,
		CloneDirectory: defaultCloneDirectoryConstant,
		PollInterval:   defaultPollIntervalConstant,
		CommitMessage:  defaultCommitMessageConstant,
		AuthorName:     defaultAuthorNameConstant,
		AuthorEmail:    defaultAuthorEmailConstant,
	}
}

// DefaultConfigurationValues exposes the defaults as configuration keys under prefix.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultConfiguration()
	keyPrefix := ""
	if len(prefix) > 0 {
		keyPrefix = prefix + configurationKeySeparatorConstant
	}
	return map[string]any{
		keyPrefix + repositoryURLKeyConstant:  defaults.RepositoryURL,
		keyPrefix + branchKeyConstant:         defaults.Branch,
		keyPrefix + sshKeyPathKeyConstant:     defaults.SSHKeyPath,
		keyPrefix + cloneDirectoryKeyConstant: defaults.CloneDirectory,
		keyPrefix + pollIntervalKeyConstant:   defaults.PollInterval,
		keyPrefix + commitMessageKeyConstant:  defaults.CommitMessage,
		keyPrefix + authorNameKeyConstant:     defaults.AuthorName,
		keyPrefix + authorEmailKeyConstant:    defaults.AuthorEmail,
	}
}

// Sanitize trims values and restores defaults for empty or invalid settings.
func (configuration Configuration) Sanitize() Configuration {
	defaults := DefaultConfiguration()
	sanitized := Configuration{
		RepositoryURL:  strings.TrimSpace(configuration.RepositoryURL),
		Branch:         fallback(configuration.Branch, defaults.Branch),
		SSHKeyPath:     strings.TrimSpace(configuration.SSHKeyPath),
		CloneDirectory: fallback(configuration.CloneDirectory, defaults.CloneDirectory),
		PollInterval:   configuration.PollInterval,
		CommitMessage:  fallback(configuration.CommitMessage, defaults.CommitMessage),
		AuthorName:     fallback(configuration.AuthorName, defaults.AuthorName),
		AuthorEmail:    fallback(configuration.AuthorEmail, defaults.AuthorEmail),
	}
	if sanitized.PollInterval <= 0 {
		sanitized.PollInterval = defaults.PollInterval
	}
	return sanitized
}

func fallback(value string, defaultValue string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return defaultValue
	}
	return trimmedValue
}
