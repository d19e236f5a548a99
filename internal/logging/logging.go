/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package logging configures docfleetd's zap logger and provides helpers
// for attaching per-build contextual fields.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production zap logger. When dev is true it uses a
// human-readable console encoder instead of JSON, for local runs.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// ForBuild returns a child logger tagged with the fields that identify a
// single build job, so every log line emitted during its execution can be
// correlated without passing job metadata down every call.
func ForBuild(base *zap.Logger, jobID, targetID, repositoryID string) *zap.Logger {
	return base.With(
		zap.String("job_id", jobID),
		zap.String("target_id", targetID),
		zap.String("repository_id", repositoryID),
	)
}

// ForStage returns a child logger additionally tagged with the executor
// stage currently running (clone, checkout, provision, doc_build, publish).
func ForStage(base *zap.Logger, stage string) *zap.Logger {
	return base.With(zap.String("stage", stage))
}
