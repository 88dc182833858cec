// Package testutil provides shared test utilities for serverboard.
//
// # Fixtures
//
// The fixtures.go file provides sample data for testing:
//
//   - TestUsername, TestPassword, TestToken - the credentials the stub API accepts
//   - SampleServers() - a fresh slice of servers with grouped names
//   - SampleServersJSON - the same list as the API serves it
//
// # Stub API
//
// The stubapi.go file provides an httptest server speaking the playground API:
//
//   - NewStubAPI(t) - POST /tokens and GET /servers, closed on test cleanup
//   - (*StubAPI).HoldLogins() - park login requests until released
//   - (*StubAPI).FailServers(status) / SetServers(list) - shape /servers
//   - (*StubAPI).SetLoginResponse(status, body) - serve a raw login reply
//
// # Environment Helpers
//
// The env.go file provides test environment setup:
//
//   - IsolateConfig(t) - points XDG_CONFIG_HOME and HOME at a temp dir
//   - SetupConfigDir(t, yaml) - writes serverboard/config.yaml there
//   - MustMarshalJSON(t, v) / MustUnmarshalJSON(t, data, v)
//   - WriteTestFile(t, base, path, content) - writes a file in test dir
//
// # Assertions
//
//   - AssertServerNames(t, expected, actual) - compares names in order
//   - AssertPermutation(t, input, output) - same multiset of servers
//
// # Usage
//
//	func TestSomething(t *testing.T) {
//	    stub := testutil.NewStubAPI(t)
//	    client := api.NewClient(stub.URL)
//	    ctx, cancel := testutil.ShortOperationContext(t)
//	    defer cancel()
//	    // ... run test ...
//	}
package testutil
