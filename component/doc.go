// Package component defines the interfaces for lifecycle-managed service
// pieces in filterkit and a Registry that starts them in registration order
// and stops them in reverse.
//
// # Interfaces
//
//   - Component: Start/Stop/Health lifecycle
//   - HealthReporter: health only, for long-lived objects such as the
//     filter lifecycle registry
package component
