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


// Package gateway provides the single mediated path to the language model
// generator. Admission goes through two gates in order: a weighted semaphore
// bounding concurrent requests, then a sliding one-minute window bounding
// the request rate. Both gates respect context cancellation, and a
// concurrency slot is always returned when its request finishes, whatever
// the outcome.
package gateway
