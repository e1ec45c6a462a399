package mcpserver

// BlockSyntaxContract describes how documentation blocks are written inside
// source comments, for LLM consumers that author or review them.
const BlockSyntaxContract = `# Anubis Block Syntax

Documentation lives in comments of ordinary source files. Every block is
delimited by the block marker of the file's language (` + "`" + `@` + "`" + ` by default).

## Structure

` + "```" + `rust
/* @[Block Name|template]
Free **markdown** text.
Link to another block: {Other Block}
Inline another block: {{Shared Block}}
*/
fn example() {}
/*
More markdown after the code sample.
@ */
` + "```" + `

## Rules

1. **Header** is ` + "`" + `[name|template]` + "`" + ` right after the opening marker. Both
   parts are trimmed; the template may be empty (the ` + "`" + `default` + "`" + ` template is used).
2. **Names are unique.** A later block with the same name replaces the earlier one.
3. **Links** are ` + "`" + `{Name}` + "`" + ` and render as a hyperlink to that block's page.
4. **Embeds** are ` + "`" + `{{Name}}` + "`" + ` and inline the rendered target block. An embed
   chain that leads back to a block on the same path is an error.
5. **Code** is written by closing the comment, writing code, and reopening the
   comment. The code is rendered as a fenced block tagged with the file's language.
6. **The closing marker** ends the block. A block needs at least one content item.
7. A marker followed by ` + "`" + `[` + "`" + ` always starts a block: if that block is malformed the
   whole file is skipped. Any other marker occurrence is ignored.
8. Nested blocks are not supported.
`
