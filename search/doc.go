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


// Package search answers natural language questions against the ingested
// documentation.
//
// A Searcher embeds the query once, asks the vector store for the nearest
// chunks under each selected node label, drops everything below the
// similarity threshold and returns the merged hits best first. Hits whose
// content contains every significant query word are flagged as verbatim
// matches and win ties.
package search
