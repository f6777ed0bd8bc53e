// Package service coordinates playbook runs and document indexing on
// top of the store, the node engine and the indexing pipeline.
package service

import (
	"github.com/sdap/playbook/internal/config"
	"github.com/sdap/playbook/internal/engine"
	"github.com/sdap/playbook/internal/indexing"
	"github.com/sdap/playbook/internal/repository"
)

type Service struct {
	store    repository.Store
	runner   *engine.Runner
	pipeline *indexing.Pipeline
	config   *config.Config
}

func New(store repository.Store, runner *engine.Runner, pipeline *indexing.Pipeline, cfg *config.Config) *Service {
	return &Service{
		store:    store,
		runner:   runner,
		pipeline: pipeline,
		config:   cfg,
	}
}
