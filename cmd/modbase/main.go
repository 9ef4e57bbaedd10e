// Package main is the entry point for modbase.
package main

func main() {
	Execute()
}
