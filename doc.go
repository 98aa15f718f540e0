// Package authgate is the client side core of an email/password login flow
// backed by a hosted identity provider.
//
// Session gate:
//   - SessionGate subscribes to the identity client's auth state changes and
//     keeps the visible route group in agreement with the session. Anonymous
//     users are sent to the public entry ("/"), authenticated users to the
//     protected entry ("/(auth)/home"). Nothing navigates until the first
//     notification arrives; Loading reports that window.
//   - NextSession and Decide are the pure halves of the gate and can be
//     exercised without a navigator.
//
// Credential submission:
//   - CredentialSubmitter forwards credentials untouched, writes the profile
//     record after a sign up, maps provider error codes through a
//     MessageCatalog and alerts the result. A second submission while one is
//     outstanding fails with ErrSubmissionInFlight.
//
// Remote flags and push:
//   - FeatureFlags applies remote config defaults, refreshes them and acts as
//     the gate.FeatureGate guarding sign up and password reset.
//   - PushRegistrar requests permission, caches the device token in the key
//     value store and turns foreground messages into toasts.
//     InstallBackgroundHandler registers the process wide background handler
//     once.
//
// App ties all of the above to one set of Collaborators.
package authgate
