/*
Package charlm implements a fixed-order character-level Markov language
model: it learns, for every window of n consecutive characters in a
training corpus, the frequency distribution of the character that follows,
and generates new text by repeatedly sampling from those distributions.

Models are trained in memory and can be seeded for reproducible output.
Trained models can be dumped for inspection, exported and imported as
JSON, or persisted to a SQLite database through a Store.
*/
package charlm
