// Package testutil provides seeded random vector generators for
// deterministic tests.
package testutil
