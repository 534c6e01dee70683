// Package resolver turns lightweight cross-document pointers inside
// nested records into the full target objects, to a caller-specified
// depth, with at most one bulk query per target collection per call.
//
// # Execution model
//
// A top-level call runs three strictly ordered phases over private,
// per-call state:
//
//	A. Scan
//	   - Depth-first walk of the input tree collecting every pointer
//	     still to be resolved into a reference map: pending identifiers
//	     grouped by target type (when the enclosing field declares one)
//	     or by raw collection name (generic/tagged references).
//	   - The walk is read-only and bounded by maxDepth counted up from 0
//	     at the call site; cycle safety comes from the bound, not from a
//	     visited set, which deliberately mirrors shallow-resolution
//	     semantics.
//	   - Deferred pointers (LazyRef) are recognized and skipped, at every
//	     depth. Under the suspending variant, deferred reference proxies
//	     are unwrapped to their underlying pointer before the ordinary
//	     rules apply.
//
//	B. Fetch
//	   - One bulk find-many-by-identifier per bucket, deduplicated per
//	     bucket and cross-bucket by (collection, id), producing the object
//	     map. No fetch happens during the scan, so a whole subtree batches
//	     into one query per collection instead of one query per pointer.
//	   - Typed buckets go through the target type's QuerySet; generic
//	     buckets through the Store against the raw collection name, with
//	     the concrete row type decided by discriminator, threaded field
//	     type, or collection-name fallback, in that order.
//	   - A row that is missing or fails to materialize is simply absent
//	     from the object map. A failed bulk query, or a discriminator the
//	     registry has never seen, aborts the call.
//
//	C. Attach
//	   - Re-walk of the same shape substituting fetched objects for
//	     pointers. Records are updated in place; containers are
//	     reconstructed preserving their kind: fixed-length sequences stay
//	     fixed, owner-tracked containers are re-wrapped with the owner and
//	     field path they arrived with, including empty ones so mutation
//	     tracking keeps working.
//	   - A lookup miss leaves the original pointer untouched; resolution
//	     failure is silent, never an error.
//
// # Blocking and suspending variants
//
// Resolve and ResolveAsync produce identical results for equivalent
// stored data. ResolveAsync additionally treats every bulk query and
// per-identifier fallback call as an explicit suspension point honoring
// ctx, and tolerates a query capability without bulk lookup by degrading
// to one Get per identifier, swallowing individual failures so one bad
// identifier does not abort the batch.
//
// # Concurrency
//
// A Resolver instance holds no per-call state and may serve concurrent
// top-level calls; each call's reference map, object map and depth bound
// are local to that call. No lock is held across phases: consistency is
// best-effort snapshot, so a document deleted between scan and fetch
// yields an absent object-map entry, not an error.
package resolver
