package api

import (
	"context"

	"github.com/opsorch/adminlog/schema"
)

// logPluginProvider forwards descriptors to a plugin answering "log.query".
type logPluginProvider struct {
	runner *pluginRunner
}

func newLogPluginProvider(path string, cfg map[string]any) logPluginProvider {
	return logPluginProvider{runner: newPluginRunner(path, cfg)}
}

// Close stops the plugin process.
func (p logPluginProvider) Close() error {
	p.runner.close()
	return nil
}

func (p logPluginProvider) Query(ctx context.Context, query schema.LogQuery) (schema.LogEntries, error) {
	var res schema.LogEntries
	return res, p.runner.call(ctx, "log.query", query, &res)
}

// versionPluginProvider asks a plugin answering "version.defaults" for the default versions.
type versionPluginProvider struct {
	runner *pluginRunner
}

func newVersionPluginProvider(path string, cfg map[string]any) versionPluginProvider {
	return versionPluginProvider{runner: newPluginRunner(path, cfg)}
}

// Close stops the plugin process.
func (p versionPluginProvider) Close() error {
	p.runner.close()
	return nil
}

func (p versionPluginProvider) DefaultVersionIDs(ctx context.Context) ([]string, error) {
	var res []string
	return res, p.runner.call(ctx, "version.defaults", nil, &res)
}
