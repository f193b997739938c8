//go:build !windows

package envpath

// UserStore returns the persisted user environment: env.yaml under the
// DevStack root plus the env.sh script generated from it.
func UserStore(envFile, envScript string) EnvStore {
	return &FileEnvStore{Path: envFile, ScriptPath: envScript}
}
