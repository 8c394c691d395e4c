// Package listener provides training callbacks invoked after every
// supervised iteration.
package listener

import (
	"github.com/sirupsen/logrus"
)

// Model is the view of a network a listener receives.
type Model interface {
	Score() float64
	ModelID() string
}

// IterationListener is notified after each supervised minibatch.
type IterationListener interface {
	IterationDone(model Model, iteration int)
}

// Func adapts a function to IterationListener.
type Func func(model Model, iteration int)

// IterationDone calls f.
func (f Func) IterationDone(model Model, iteration int) {
	f(model, iteration)
}

// ScoreIterationListener logs the score every N iterations.
type ScoreIterationListener struct {
	every  int
	logger *logrus.Logger
}

// NewScoreIterationListener logs every `every` iterations (minimum 1) to
// logger, or to the standard logrus logger when logger is nil.
func NewScoreIterationListener(every int, logger *logrus.Logger) *ScoreIterationListener {
	if every < 1 {
		every = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ScoreIterationListener{every: every, logger: logger}
}

// IterationDone logs the current score at Info level.
func (l *ScoreIterationListener) IterationDone(model Model, iteration int) {
	if iteration%l.every != 0 {
		return
	}
	l.logger.WithFields(logrus.Fields{
		"model_id":  model.ModelID(),
		"iteration": iteration,
		"score":     model.Score(),
	}).Info("score at iteration")
}

// IterationScore is one recorded score.
type IterationScore struct {
	Iteration int
	Score     float64
}

// CollectScoresListener records every score it is notified of.
type CollectScoresListener struct {
	Scores []IterationScore
}

// IterationDone appends the current score.
func (c *CollectScoresListener) IterationDone(model Model, iteration int) {
	c.Scores = append(c.Scores, IterationScore{Iteration: iteration, Score: model.Score()})
}
