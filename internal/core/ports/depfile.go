package ports

// DepfileReader parses a GCC/Clang -MMD makefile fragment into an ordered
// list of dependency paths.
//
//go:generate go run go.uber.org/mock/mockgen -source=depfile.go -destination=mocks/mock_depfile.go -package=mocks
type DepfileReader interface {
	// Read parses the depfile at path. If expectedTarget is non-empty and
	// the depfile's declared target does not match it, Read fails.
	Read(path, expectedTarget string) ([]string, error)
}
