package gitrepo

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

const (
	sshSchemeConstant                   = "ssh"
	gitSSHSchemeConstant                = "git+ssh"
	httpsSchemeConstant                 = "https"
	httpSchemeConstant                  = "http"
	fileSchemeConstant                  = "file"
	schemeDelimiterConstant             = "://"
	sshUserDelimiterConstant            = "@"
	sshPathDelimiterConstant            = ":"
	pathSeparatorConstant               = "/"
	gitSuffixConstant                   = ".git"
	redactedPasswordConstant            = "redacted"
	remoteURLParseErrorTemplateConstant = "%s: %s"
	invalidRemoteURLMessageConstant     = "invalid remote url"
	requiredValueMessageConstant        = "remote url must be provided"
	unsupportedSchemeMessageConstant    = "unsupported remote scheme"
)

// RemoteProtocol enumerates supported git remote transports.
type RemoteProtocol string

// Supported remote protocols.
const (
	RemoteProtocolSSH   RemoteProtocol = RemoteProtocol(sshSchemeConstant)
	RemoteProtocolHTTPS RemoteProtocol = RemoteProtocol(httpsSchemeConstant)
	RemoteProtocolHTTP  RemoteProtocol = RemoteProtocol(httpSchemeConstant)
	RemoteProtocolFile  RemoteProtocol = RemoteProtocol(fileSchemeConstant)
)

// RemoteURL represents a structured git remote URL.
type RemoteURL struct {
	Protocol RemoteProtocol
	User     string
	Host     string
	Path     string
	original string
}

// RemoteURLParseError indicates a remote string could not be parsed.
type RemoteURLParseError struct {
	Input   string
	Message string
}

// Error describes the parse failure.
func (parseError RemoteURLParseError) Error() string {
	return fmt.Sprintf(remoteURLParseErrorTemplateConstant, parseError.Input, parseError.Message)
}

// ParseRemoteURL converts a textual remote into a structured representation.
// It understands ssh:// and scp-like ssh remotes, http(s) remotes, file://
// remotes and plain local paths.
func ParseRemoteURL(remote string) (RemoteURL, error) {
	trimmedRemote := strings.TrimSpace(remote)
	if len(trimmedRemote) == 0 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: requiredValueMessageConstant}
	}

	if strings.Contains(trimmedRemote, schemeDelimiterConstant) {
		return parseSchemeRemote(trimmedRemote)
	}
	if isLocalPath(trimmedRemote) {
		return RemoteURL{Protocol: RemoteProtocolFile, Path: trimmedRemote, original: trimmedRemote}, nil
	}
	return parseSCPRemote(trimmedRemote)
}

// RequiresSSHKey reports whether the transport authenticates with an ssh key.
func (remote RemoteURL) RequiresSSHKey() bool {
	return remote.Protocol == RemoteProtocolSSH
}

// RepositoryName returns the last path segment without the .git suffix.
func (remote RemoteURL) RepositoryName() string {
	trimmedPath := strings.TrimRight(filepath.ToSlash(remote.Path), pathSeparatorConstant)
	lastSeparator := strings.LastIndex(trimmedPath, pathSeparatorConstant)
	return strings.TrimSuffix(trimmedPath[lastSeparator+1:], gitSuffixConstant)
}

// String returns the remote as it should be passed to git.
func (remote RemoteURL) String() string {
	return remote.original
}

// Redacted returns the remote with any embedded password masked.
func (remote RemoteURL) Redacted() string {
	if remote.Protocol != RemoteProtocolHTTPS && remote.Protocol != RemoteProtocolHTTP {
		return remote.original
	}
	parsedURL, parseError := url.Parse(remote.original)
	if parseError != nil || parsedURL.User == nil {
		return remote.original
	}
	if _, hasPassword := parsedURL.User.Password(); hasPassword {
		parsedURL.User = url.UserPassword(parsedURL.User.Username(), redactedPasswordConstant)
	}
	return parsedURL.String()
}

func parseSchemeRemote(remote string) (RemoteURL, error) {
	parsedURL, parseError := url.Parse(remote)
	if parseError != nil {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}

	var protocol RemoteProtocol
	switch strings.ToLower(parsedURL.Scheme) {
	case sshSchemeConstant, gitSSHSchemeConstant:
		protocol = RemoteProtocolSSH
	case httpsSchemeConstant:
		protocol = RemoteProtocolHTTPS
	case httpSchemeConstant:
		protocol = RemoteProtocolHTTP
	case fileSchemeConstant:
		return RemoteURL{Protocol: RemoteProtocolFile, Path: parsedURL.Path, original: remote}, nil
	default:
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: unsupportedSchemeMessageConstant}
	}

	if len(parsedURL.Hostname()) == 0 || len(strings.Trim(parsedURL.Path, pathSeparatorConstant)) == 0 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}
	userName := ""
	if parsedURL.User != nil {
		userName = parsedURL.User.Username()
	}
	return RemoteURL{
		Protocol: protocol,
		User:     userName,
		Host:     parsedURL.Hostname(),
		Path:     strings.TrimPrefix(parsedURL.Path, pathSeparatorConstant),
		original: remote,
	}, nil
}

func parseSCPRemote(remote string) (RemoteURL, error) {
	pathSplitIndex := strings.Index(remote, sshPathDelimiterConstant)
	if pathSplitIndex <= 0 || pathSplitIndex == len(remote)-1 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}
	userAndHost := remote[:pathSplitIndex]
	path := remote[pathSplitIndex+1:]

	userName := ""
	host := userAndHost
	if userSplitIndex := strings.LastIndex(userAndHost, sshUserDelimiterConstant); userSplitIndex != -1 {
		userName = userAndHost[:userSplitIndex]
		host = userAndHost[userSplitIndex+1:]
	}
	if len(host) == 0 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}
	return RemoteURL{Protocol: RemoteProtocolSSH, User: userName, Host: host, Path: path, original: remote}, nil
}

// isLocalPath follows git's rule: a remote is local when it has no colon or a
// slash appears before the first colon.
func isLocalPath(remote string) bool {
	if filepath.IsAbs(remote) || strings.HasPrefix(remote, ".") {
		return true
	}
	colonIndex := strings.Index(remote, sshPathDelimiterConstant)
	if colonIndex == -1 {
		return true
	}
	slashIndex := strings.Index(remote, pathSeparatorConstant)
	return slashIndex != -1 && slashIndex < colonIndex
}
