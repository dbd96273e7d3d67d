// Command arena runs blind side-by-side evaluations of two generative backends.
package main

func main() {
	Execute()
}
