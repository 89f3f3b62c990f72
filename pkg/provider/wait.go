package provider

import "time"

// waitTimeout bounds the AWS SDK's wait_until_* waiters. The spec carries
// no cooperative cancellation of in-flight provider calls; this is the
// SDK's own default-derived ceiling, not a retry policy.
const waitTimeout = 5 * time.Minute
