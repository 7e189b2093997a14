// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package cache implements the query result cache: an LRU cache with a
// fixed per-cache TTL, keyed by deterministic query fingerprints.
//
// The cache exclusively owns entry lifetime. Entries are created on
// miss-then-store, evicted on LRU overflow or lazy TTL expiry, and removed
// in bulk when a collection is invalidated after re-ingestion. Fingerprint
// collisions are detected by comparing the canonical request preimage and
// downgraded to misses; they are never surfaced to callers.
package cache
