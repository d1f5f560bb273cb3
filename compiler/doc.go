/*

Process of compilation

IR Text (yaml) ->
	ir.Parse ->
Three-address IR (ir.Program) ->
	back.Generate ->
Machine Program (back.Program) ->
	back.AppendAsm ->
Assembly Text ->
	assemble and link with runtime ->
Binary Executable

Machine Program ->
	emu.Run ->
Output

*/
package compiler
