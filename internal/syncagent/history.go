package syncagent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/temirov/catalogsync/internal/catalog"
)

const (
	openCloneErrorTemplateConstant   = "failed to open working clone: %w"
	resolveHeadErrorTemplateConstant = "failed to resolve clone head: %w"
	readLogErrorTemplateConstant     = "failed to read history of %s: %w"
)

// CommitRecord summarizes one commit that touched a collection file.
type CommitRecord struct {
	Hash        string
	AuthorName  string
	AuthorEmail string
	When        time.Time
	Message     string
}

// History lists the commits of the working clone that changed the collection
// file, newest first. A positive limit caps the number of entries.
func (agent *Agent) History(executionContext context.Context, collection catalog.Collection, limit int) ([]CommitRecord, error) {
	agent.cloneMutex.Lock()
	defer agent.cloneMutex.Unlock()

	if !agent.initialized {
		return nil, ErrCloneNotInitialized
	}
	return readHistory(executionContext, agent.configuration.CloneDirectory, collection, limit)
}

func readHistory(executionContext context.Context, repositoryPath string, collection catalog.Collection, limit int) ([]CommitRecord, error) {
	repository, openError := git.PlainOpen(repositoryPath)
	if openError != nil {
		return nil, fmt.Errorf(openCloneErrorTemplateConstant, openError)
	}
	head, headError := repository.Head()
	if headError != nil {
		return nil, fmt.Errorf(resolveHeadErrorTemplateConstant, headError)
	}

	fileName := collection.RemoteFileName()
	iterator, logError := repository.Log(&git.LogOptions{From: head.Hash(), FileName: &fileName})
	if logError != nil {
		return nil, fmt.Errorf(readLogErrorTemplateConstant, fileName, logError)
	}
	defer iterator.Close()

	records := make([]CommitRecord, 0)
	iterationError := iterator.ForEach(func(commit *object.Commit) error {
		if contextError := executionContext.Err(); contextError != nil {
			return contextError
		}
		if limit > 0 && len(records) >= limit {
			return storer.ErrStop
		}
		records = append(records, CommitRecord{
			Hash:        commit.Hash.String(),
			AuthorName:  commit.Author.Name,
			AuthorEmail: commit.Author.Email,
			When:        commit.Author.When,
			Message:     strings.TrimSpace(commit.Message),
		})
		return nil
	})
	if iterationError != nil {
		return nil, fmt.Errorf(readLogErrorTemplateConstant, fileName, iterationError)
	}
	return records, nil
}
