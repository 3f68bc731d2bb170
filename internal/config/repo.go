package config

// RepoConfig describes the repo an lmake instance builds: its root
// directory, where persistent store state lives, and which subdirectories
// are never scanned for sources (spec §2 "repo root", §4.1 persistent
// store location).
type RepoConfig struct {
	Root     string   `yaml:"root"`
	StoreDir string   `yaml:"store_dir"`
	Ignore   []string `yaml:"ignore"`
}

// DefaultRepoConfig mirrors the teacher's DefaultWorldConfig ignore-list
// idiom (a fixed set of VCS/build-output directories skipped by default),
// narrowed to the directories a build orchestrator, not a code-graph
// scanner, actually needs to exclude.
func DefaultRepoConfig() RepoConfig {
	return RepoConfig{
		Root:     ".",
		StoreDir: ".lmake",
		Ignore: []string{
			".git",
			".lmake",
			"node_modules",
			"vendor",
		},
	}
}
